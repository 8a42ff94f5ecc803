// ABOUTME: Pipeline, contract and sponsor API handlers
// ABOUTME: Thin adapters from HTTP requests onto the pipeline service and contract manager
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/signing"
	"github.com/harperreed/sponsordesk/status"
)

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "conference_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cards, err := s.svc.Pipeline.ListBoard(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cards)
}

type statusRequest struct {
	Axis  string `json:"axis"`
	Value string `json:"value"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Axis == "" {
		req.Axis = string(status.AxisPipeline)
	}
	axis, err := status.ParseAxis(req.Axis)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.svc.Pipeline.UpdateStatus(r.Context(), id, axis, req.Value, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []uuid.UUID `json:"ids"`
		Axis  string      `json:"axis"`
		Value string      `json:"value"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	axis, err := status.ParseAxis(req.Axis)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.svc.Pipeline.BulkUpdateStatus(r.Context(), req.IDs, axis, req.Value, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleAddToPipeline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SponsorID        uuid.UUID   `json:"sponsor_id"`
		ConferenceID     uuid.UUID   `json:"conference_id"`
		TierID           *uuid.UUID  `json:"tier_id"`
		AddonTierIDs     []uuid.UUID `json:"addon_tier_ids"`
		ContractValue    *int64      `json:"contract_value"`
		ContractCurrency string      `json:"contract_currency"`
		SignerName       string      `json:"signer_name"`
		SignerEmail      string      `json:"signer_email"`
		Tags             []string    `json:"tags"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Pipeline.AddToPipeline(r.Context(), pipeline.AddInput{
		SponsorID:        req.SponsorID,
		ConferenceID:     req.ConferenceID,
		TierID:           req.TierID,
		AddonTierIDs:     req.AddonTierIDs,
		ContractValue:    req.ContractValue,
		ContractCurrency: req.ContractCurrency,
		SignerName:       req.SignerName,
		SignerEmail:      req.SignerEmail,
		Tags:             req.Tags,
		Actor:            actor(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (s *Server) handleGenerateContract(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	generated, err := s.svc.Contracts.GenerateContract(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, generated)
}

// handleSignature records a signature reported by an organizer. With
// refresh=true the provider is asked for the current agreement state instead.
func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		rec, err := s.svc.Contracts.RefreshSignatureStatus(r.Context(), id, actor(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, rec)
		return
	}

	var req struct {
		SignedAt          *time.Time `json:"signed_at"`
		SignerName        string     `json:"signer_name"`
		OrganizerName     string     `json:"organizer_name"`
		OrganizerSignedAt *time.Time `json:"organizer_signed_at"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.svc.Contracts.RecordSignatureEvent(r.Context(), id, contract.SignatureEvent{
		SignedAt:          req.SignedAt,
		SignerName:        req.SignerName,
		OrganizerName:     req.OrganizerName,
		OrganizerSignedAt: req.OrganizerSignedAt,
		Actor:             actor(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) handleSendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reminder, err := s.svc.Contracts.SendSigningReminder(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, reminder)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, apperr.InvalidField("limit", "must be a non-negative number"))
			return
		}
	}
	activities, err := s.svc.Pipeline.ListActivities(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, activities)
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	activity, err := s.svc.Pipeline.AddNote(r.Context(), id, req.Type, req.Description, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, activity)
}

type deleteSummary struct {
	Sponsors       int `json:"sponsors"`
	Records        int `json:"records"`
	Activities     int `json:"activities"`
	Assets         int `json:"assets"`
	RetainedAssets int `json:"retained_assets"`
}

func summarize(plan *db.DeletePlan) deleteSummary {
	return deleteSummary{
		Sponsors:       len(plan.SponsorIDs),
		Records:        len(plan.RecordIDs),
		Activities:     len(plan.ActivityIDs),
		Assets:         len(plan.AssetIDs),
		RetainedAssets: len(plan.RetainedAssetIDs),
	}
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := db.DeleteOptions{DeleteContractAsset: r.URL.Query().Get("deleteContractAsset") == "true"}
	plan, err := s.svc.Pipeline.DeleteRecord(r.Context(), id, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, summarize(plan))
}

func (s *Server) handleCreateSponsor(w http.ResponseWriter, r *http.Request) {
	var sponsor models.Sponsor
	if err := readJSON(r, &sponsor); err != nil {
		writeError(w, r, err)
		return
	}
	sponsor.ID = uuid.Nil
	if err := s.svc.Pipeline.CreateSponsor(r.Context(), &sponsor); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{
		"sponsor":        sponsor,
		"onboarding_url": signing.OnboardingURL(s.opts.BaseURL, sponsor.OnboardingToken),
	})
}

func (s *Server) handleFindSponsors(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sponsors, err := s.svc.Pipeline.FindSponsors(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sponsors)
}

func (s *Server) handleDeleteSponsor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.svc.Pipeline.DeleteSponsor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, summarize(plan))
}
