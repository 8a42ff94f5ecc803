// ABOUTME: HTTP implementations of the board Mutator and Loader
// ABOUTME: Talks to the pipeline API and turns error envelopes back into typed errors
package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/retry"
	"github.com/harperreed/sponsordesk/status"
	"go.uber.org/zap"
)

// Client calls the pipeline API. It satisfies both Mutator and Loader.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   retry.Config
	logger  *zap.Logger
}

type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Retry      retry.Config
}

func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    opts.HTTPClient,
		retry:   opts.Retry,
		logger:  logger,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// UpdateStatus sends PATCH /api/pipeline/{id}/status. It is never retried.
func (c *Client) UpdateStatus(ctx context.Context, recordID uuid.UUID, axis status.Axis, value string) error {
	body, err := json.Marshal(map[string]string{"axis": string(axis), "value": value})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/api/pipeline/"+recordID.String()+"/status", body, nil)
}

// LoadBoard sends GET /api/conferences/{id}/pipeline with retries.
func (c *Client) LoadBoard(ctx context.Context, conferenceID uuid.UUID) ([]Card, error) {
	return retry.Value(ctx, c.retry, c.logger, "load board", func(ctx context.Context) ([]Card, error) {
		var cards []Card
		if err := c.do(ctx, http.MethodGet, "/api/conferences/"+conferenceID.String()+"/pipeline", nil, &cards); err != nil {
			return nil, err
		}
		return cards, nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.ProviderFailure("pipeline API", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.ProviderFailure("pipeline API", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && env.Error != nil {
			return &apperr.Error{
				Kind:    apperr.Kind(env.Error.Code),
				Message: env.Error.Message,
				Status:  resp.StatusCode,
				Fields:  env.Error.Details,
			}
		}
		return apperr.Provider("pipeline API", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
