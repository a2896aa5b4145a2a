package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"lodge_finder/internal/domain"
)

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.valid.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "username and password are required")
		return
	}
	tok, exp, err := h.Auth.Login(req.Username, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		log.Warn().Str("username", req.Username).Str("ip", clientIP(r)).Msg("admin login rejected")
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid username or password")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResp{Token: tok, ExpiresAt: exp})
}

func (h *Handlers) adminList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.A.List(r.Context()))
}

func (h *Handlers) adminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	l, err := h.A.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) adminCreate(w http.ResponseWriter, r *http.Request) {
	f, err := decodeLodgeForm(r, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	l, err := h.A.CreateOrUpdate(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("admin", AdminFrom(r.Context())).Int64("lodge_id", l.ID).Msg("lodge saved")
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) adminUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	f, err := decodeLodgeForm(r, &id)
	if err != nil {
		writeError(w, err)
		return
	}
	l, err := h.A.CreateOrUpdate(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("admin", AdminFrom(r.Context())).Int64("lodge_id", l.ID).Msg("lodge updated")
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) adminDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	if err := h.A.Delete(r.Context(), id, confirmed(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminSubscribers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	subs, err := h.A.Subscribers(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(subs), "subscribers": subs})
}

type broadcastReq struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *Handlers) adminBroadcast(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	var req broadcastReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.A.BroadcastToSubscribers(r.Context(), id, req.Subject, req.Message)
	writeRelay(w, res, err)
}

// writeRelay answers with the relay body whatever the outcome; lookups that
// never reached the relay fall back to problem responses.
func writeRelay(w http.ResponseWriter, res any, err error) {
	var ve *domain.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, res)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, err)
	default:
		if !errors.Is(err, domain.ErrDelivery) {
			log.Error().Err(err).Msg("relay request failed")
		}
		writeJSON(w, http.StatusInternalServerError, res)
	}
}
