package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	faceMiddleware "github.com/MrEthical07/goFaceAuth/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 16 << 20

type registerRequest struct {
	Identity string `json:"identity"`
	Image    []byte `json:"image"`
}

type loginRequest struct {
	Identity        string   `json:"identity"`
	Image           []byte   `json:"image"`
	Frames          [][]byte `json:"frames,omitempty"`
	RequireLiveness bool     `json:"require_liveness,omitempty"`
}

type beginStepUpRequest struct {
	SessionRef string `json:"session_ref"`
	Identity   string `json:"identity"`
}

type verifyStepUpRequest struct {
	Image  []byte   `json:"image"`
	Frames [][]byte `json:"frames,omitempty"`
}

type verdictResponse struct {
	Identity   string  `json:"identity"`
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Failed     uint64  `json:"failed_count"`
	Succeeded  uint64  `json:"success_count"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.engine.Register(r.Context(), req.Identity, req.Image)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{
		"identity":      profile.Identity,
		"registered_at": profile.RegisteredAt,
		"dimension":     len(profile.Embedding),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.engine.Authenticate(r.Context(), goFaceAuth.AuthenticateRequest{
		Identity:        req.Identity,
		Image:           req.Image,
		Frames:          req.Frames,
		RequireLiveness: req.RequireLiveness,
	})
	if v == nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	respondWithJSON(w, status, verdictResponse{
		Identity:   v.Identity,
		Success:    v.Success,
		Confidence: v.Confidence,
		Reason:     string(v.Reason),
		Failed:     v.Counters.Failed,
		Succeeded:  v.Counters.Success,
	})
}

func (h *Handler) handleBeginStepUp(w http.ResponseWriter, r *http.Request) {
	var req beginStepUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, err := h.engine.BeginStepUp(r.Context(), req.SessionRef, req.Identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if ch.Required {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, map[string]any{
		"challenge_id": ch.ID,
		"required":     ch.Required,
		"expires_at":   ch.ExpiresAt,
	})
}

func (h *Handler) handleStepUpStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := h.engine.StepUpSatisfied(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"satisfied": ok})
}

func (h *Handler) handleVerifyStepUp(w http.ResponseWriter, r *http.Request) {
	var req verifyStepUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.engine.VerifyStepUp(r.Context(), chi.URLParam(r, "challengeID"), req.Image, req.Frames)
	if err != nil {
		if res != nil {
			respondWithJSON(w, statusFor(err), map[string]any{
				"verified":   false,
				"confidence": res.Confidence,
				"error":      err.Error(),
			})
			return
		}
		h.writeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"verified":     res.Verified,
		"confidence":   res.Confidence,
		"proof":        res.Proof,
		"proof_expiry": res.ProofExpiry,
	})
}

func (h *Handler) handleEndStepUp(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EndStepUp(r.Context(), chi.URLParam(r, "challengeID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	p, err := h.engine.Profile(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counters, err := h.engine.AttemptCounters(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	locked, err := h.engine.IsLocked(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"identity":          p.Identity,
		"enabled":           p.Enabled,
		"liveness_required": p.LivenessRequired,
		"registered_at":     p.RegisteredAt,
		"success_count":     counters.Success,
		"failed_count":      counters.Failed,
		"locked":            locked,
	})
}

func (h *Handler) handleDisableProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DisableProfile(r.Context(), chi.URLParam(r, "identity")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	resetCounters, _ := strconv.ParseBool(r.URL.Query().Get("reset_counters"))
	if err := h.engine.ResetLockout(r.Context(), chi.URLParam(r, "identity"), resetCounters); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditHistory(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")

	var (
		records []goFaceAuth.AuditRecord
		err     error
	)
	if r.URL.Query().Get("failed") == "true" {
		since := time.Time{}
		if raw := r.URL.Query().Get("since"); raw != "" {
			since, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "invalid since", http.StatusBadRequest)
				return
			}
		}
		records, err = h.engine.FailedAttempts(r.Context(), identity, since)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		records, err = h.engine.AuditHistory(r.Context(), identity, limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) handleSecurityReport(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.SecurityReport())
}

func (h *Handler) handleSensitive(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"confirmed": true}
	if proof, ok := faceMiddleware.StepUpProofFromContext(r.Context()); ok {
		resp["identity"] = proof.Identity
		resp["session_ref"] = proof.SessionRef
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(err, "request failed")
	}
	respondWithJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goFaceAuth.ErrInvalidInput),
		errors.Is(err, goFaceAuth.ErrInsufficientFrames),
		errors.Is(err, goFaceAuth.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, goFaceAuth.ErrProfileNotFound),
		errors.Is(err, goFaceAuth.ErrStepUpChallengeInvalid):
		return http.StatusNotFound
	case errors.Is(err, goFaceAuth.ErrStepUpChallengeExpired):
		return http.StatusGone
	case errors.Is(err, goFaceAuth.ErrNoMatch),
		errors.Is(err, goFaceAuth.ErrNotLive),
		errors.Is(err, goFaceAuth.ErrStepUpRejected),
		errors.Is(err, goFaceAuth.ErrStepUpProofInvalid),
		errors.Is(err, goFaceAuth.ErrStepUpNotVerified):
		return http.StatusUnauthorized
	case errors.Is(err, goFaceAuth.ErrFeatureDisabled),
		errors.Is(err, goFaceAuth.ErrFaceAuthNotEnabled):
		return http.StatusForbidden
	case errors.Is(err, goFaceAuth.ErrStepUpDisabled):
		return http.StatusConflict
	case errors.Is(err, goFaceAuth.ErrLocked),
		errors.Is(err, goFaceAuth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goFaceAuth.ErrAuditLogDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, goFaceAuth.ErrProviderUnavailable),
		errors.Is(err, goFaceAuth.ErrStoreUnavailable),
		errors.Is(err, goFaceAuth.ErrStepUpUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
