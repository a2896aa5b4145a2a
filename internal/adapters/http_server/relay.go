package httpserver

import (
	"net/http"

	"lodge_finder/internal/app"
)

func (h *Handlers) relayHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.R.Health())
}

// relayBody decodes a relay request; a malformed body answers in the relay shape.
func relayBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, app.RelayResult{Message: "Invalid request body"})
		return false
	}
	return true
}

func (h *Handlers) contact(w http.ResponseWriter, r *http.Request) {
	var req app.ContactRequest
	if !relayBody(w, r, &req) {
		return
	}
	res, err := h.R.Contact(r.Context(), req)
	writeRelay(w, res, err)
}

func (h *Handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req app.SubscribeRequest
	if !relayBody(w, r, &req) {
		return
	}
	res, err := h.R.Subscribe(r.Context(), req)
	writeRelay(w, res, err)
}

func (h *Handlers) broadcast(w http.ResponseWriter, r *http.Request) {
	var req app.BroadcastRequest
	if !relayBody(w, r, &req) {
		return
	}
	res, err := h.R.Broadcast(r.Context(), req)
	writeRelay(w, res, err)
}
