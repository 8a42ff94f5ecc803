// ABOUTME: Tests for the external signing provider adapter
// ABOUTME: Runs the REST adapter against an httptest fake of the agreements API
package signing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/config"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeSignAPI keeps agreements in memory and mimics the provider's
// responses, including rejecting a second cancellation.
type fakeSignAPI struct {
	mu         gosync.Mutex
	agreements map[string]string
	uploads    map[string][]byte
	nextID     int
	failNext   []int
	calls      []string
}

func newFakeSignAPI() *fakeSignAPI {
	return &fakeSignAPI{agreements: map[string]string{}, uploads: map[string][]byte{}}
}

func (f *fakeSignAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if len(f.failNext) > 0 {
		status := f.failNext[0]
		f.failNext = f.failNext[1:]
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"MISC_SERVER_ERROR"}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	parts := strings.Split(strings.Trim(path, "/"), "/")

	writeJSON := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.Method == http.MethodPost && path == "/transientDocuments":
		file, _, err := r.FormFile("File")
		if err != nil {
			writeJSON(http.StatusBadRequest, map[string]string{"code": "NO_FILE"})
			return
		}
		data, _ := io.ReadAll(file)
		f.nextID++
		id := fmt.Sprintf("td-%d", f.nextID)
		f.uploads[id] = data
		writeJSON(http.StatusCreated, map[string]string{"transientDocumentId": id})

	case r.Method == http.MethodPost && path == "/agreements":
		var info agreementInfo
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil || len(info.FileInfos) == 0 {
			writeJSON(http.StatusBadRequest, map[string]string{"code": "INVALID_ARGUMENTS"})
			return
		}
		f.nextID++
		id := fmt.Sprintf("ag-%d", f.nextID)
		f.agreements[id] = models.AgreementOutForSignature
		writeJSON(http.StatusCreated, map[string]string{"id": id})

	case len(parts) == 2 && parts[0] == "agreements" && r.Method == http.MethodGet:
		state, ok := f.agreements[parts[1]]
		if !ok {
			writeJSON(http.StatusNotFound, map[string]string{"code": "INVALID_AGREEMENT_ID"})
			return
		}
		writeJSON(http.StatusOK, map[string]string{"id": parts[1], "name": "Agreement", "status": state})

	case len(parts) == 3 && parts[2] == "signingUrls":
		writeJSON(http.StatusOK, map[string]interface{}{
			"signingUrlSetInfos": []interface{}{map[string]interface{}{
				"signingUrls": []interface{}{map[string]string{"email": "kari@acme.test", "esignUrl": "https://sign.test/" + parts[1]}},
			}},
		})

	case len(parts) == 3 && parts[2] == "reminders":
		writeJSON(http.StatusCreated, map[string]string{"id": "rem-" + parts[1]})

	case len(parts) == 3 && parts[2] == "state" && r.Method == http.MethodPut:
		var body struct {
			State string `json:"state"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.agreements[parts[1]] == models.AgreementCancelled {
			writeJSON(http.StatusBadRequest, map[string]string{"code": "INVALID_STATE"})
			return
		}
		f.agreements[parts[1]] = body.State
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestExternal(t *testing.T, api *fakeSignAPI) *ExternalProvider {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	p, err := NewExternalProvider(ExternalOptions{
		Name:        "Adobe Sign",
		BaseURL:     srv.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		HTTPClient:  srv.Client(),
		Retry:       retry.Config{MaxTries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestExternalCreateThenGet(t *testing.T) {
	ctx := context.Background()
	api := newFakeSignAPI()
	p := newTestExternal(t, api)

	docID, err := p.UploadTransientDocument(ctx, []byte("%PDF-1.4 test"), "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), api.uploads[docID])

	created, err := p.CreateAgreement(ctx, AgreementRequest{
		Name:             "Acme AS - DevConf",
		ParticipantEmail: "kari@acme.test",
		FileInfos:        []FileInfo{{TransientDocumentID: docID}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://sign.test/"+created.ID, created.SigningURL)

	got, err := p.GetAgreement(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.AgreementOutForSignature, got.Status)
}

func TestExternalCancelTwice(t *testing.T) {
	ctx := context.Background()
	api := newFakeSignAPI()
	api.agreements["ag-9"] = models.AgreementOutForSignature
	p := newTestExternal(t, api)

	require.NoError(t, p.CancelAgreement(ctx, "ag-9"))
	require.NoError(t, p.CancelAgreement(ctx, "ag-9"))

	got, err := p.GetAgreement(ctx, "ag-9")
	require.NoError(t, err)
	assert.Equal(t, models.AgreementCancelled, got.Status)
}

func TestExternalNon2xxIsProviderError(t *testing.T) {
	p := newTestExternal(t, newFakeSignAPI())

	_, err := p.GetAgreement(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProvider))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "Adobe Sign API error 404", appErr.Message)
}

func TestExternalRetriesServerErrors(t *testing.T) {
	api := newFakeSignAPI()
	api.agreements["ag-1"] = models.AgreementSigned
	api.failNext = []int{http.StatusServiceUnavailable, http.StatusBadGateway}
	p := newTestExternal(t, api)

	got, err := p.GetAgreement(context.Background(), "ag-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgreementSigned, got.Status)
	assert.Len(t, api.calls, 3)
}

func TestExternalCreateIsNotRetried(t *testing.T) {
	api := newFakeSignAPI()
	api.failNext = []int{http.StatusServiceUnavailable}
	p := newTestExternal(t, api)

	_, err := p.CreateAgreement(context.Background(), AgreementRequest{
		Name: "x", ParticipantEmail: "kari@acme.test", FileInfos: []FileInfo{{TransientDocumentID: "td"}},
	})
	assert.True(t, apperr.Is(err, apperr.KindProvider))
	assert.Len(t, api.calls, 1)
}

func TestExternalSendReminder(t *testing.T) {
	p := newTestExternal(t, newFakeSignAPI())
	rem, err := p.SendReminder(context.Background(), "ag-3")
	require.NoError(t, err)
	assert.Equal(t, "rem-ag-3", rem.ID)
	assert.Equal(t, "ACTIVE", rem.Status)
}

func TestExternalRejectsInvalidRequest(t *testing.T) {
	api := newFakeSignAPI()
	p := newTestExternal(t, api)

	_, err := p.CreateAgreement(context.Background(), AgreementRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, api.calls)
}

func TestNewExternalProviderFromConfig(t *testing.T) {
	p, err := NewExternalProviderFromConfig(config.SigningConfig{}, retry.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewExternalProviderFromConfig(config.SigningConfig{
		BaseURL: "https://api.eu1.adobesign.test", ClientID: "id", RefreshToken: "rt", ProviderName: "Adobe Sign",
	}, retry.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderExternal, p.Kind())

	_, err = NewExternalProvider(ExternalOptions{BaseURL: "https://x.test"}, nil)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}
