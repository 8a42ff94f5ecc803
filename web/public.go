// ABOUTME: Handlers reached from outside the organizer UI
// ABOUTME: Serves the reminder cron trigger, provider webhooks, signing portal and onboarding form
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/logging"
	"github.com/harperreed/sponsordesk/pipeline"
	"go.uber.org/zap"
)

const webhookClientHeader = "X-AdobeSign-ClientId"

func (s *Server) handleReminderCron(w http.ResponseWriter, r *http.Request) {
	if s.opts.CronSecret == "" {
		writeError(w, r, apperr.Configuration("CRON_SECRET is not configured"))
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.CronSecret)) != 1 {
		writeError(w, r, apperr.Authentication("invalid cron secret"))
		return
	}

	result, err := s.svc.Sweeper.Sweep(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Total == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": result.Success, "message": result.Message})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type webhookPayload struct {
	Event     string `json:"event"`
	EventDate string `json:"eventDate"`
	Agreement struct {
		ID string `json:"id"`
	} `json:"agreement"`
}

// handleSigningWebhook accepts provider notifications. The provider checks
// that its client id is echoed back before it delivers anything.
func (s *Server) handleSigningWebhook(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookClientID == "" {
		writeError(w, r, apperr.Configuration("signing webhook client id is not configured"))
		return
	}
	clientID := r.Header.Get(webhookClientHeader)
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(s.opts.WebhookClientID)) != 1 {
		writeError(w, r, apperr.Authentication("unknown webhook client"))
		return
	}
	w.Header().Set(webhookClientHeader, clientID)

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, apperr.InvalidField("body", err.Error()))
		return
	}
	if payload.Agreement.ID == "" {
		writeError(w, r, apperr.InvalidField("agreement.id", "is required"))
		return
	}

	var at *time.Time
	if t, err := time.Parse(time.RFC3339, payload.EventDate); err == nil {
		at = &t
	}

	rec, err := s.svc.Contracts.RecordAgreementEvent(r.Context(), payload.Agreement.ID, payload.Event, at)
	if apperr.Is(err, apperr.KindNotFound) {
		logging.FromContext(r.Context(), s.logger).Info("webhook for unknown agreement",
			zap.String("agreement_id", payload.Agreement.ID), zap.String("event", payload.Event))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ignored": true})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	agreement, err := s.svc.Portal.GetAgreement(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, agreement)
}

func (s *Server) handlePortalDocument(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Portal.Document(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="contract.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePortalSign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SignerName string `json:"signer_name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SignerName) == "" {
		writeError(w, r, apperr.InvalidField("signer_name", "is required"))
		return
	}

	rec, err := s.svc.Contracts.CompletePortalSigning(r.Context(), chi.URLParam(r, "token"), strings.TrimSpace(req.SignerName))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"signature_status":   rec.SignatureStatus,
		"contract_signed_at": rec.ContractSignedAt,
	})
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	saved, err := s.svc.Pipeline.GetOnboarding(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}

func (s *Server) handleSubmitOnboarding(w http.ResponseWriter, r *http.Request) {
	var form pipeline.Onboarding
	if err := readJSON(r, &form); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.svc.Pipeline.SubmitOnboarding(r.Context(), chi.URLParam(r, "token"), form); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.svc.Pipeline.GetOnboarding(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}
