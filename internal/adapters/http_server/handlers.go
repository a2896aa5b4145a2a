package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
)

type Handlers struct {
	Q     *app.QueryService
	B     *app.BookmarkService
	A     *app.AdminService
	R     *app.RelayService
	Auth  *Auth
	valid *validator.Validate
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	h.valid = validator.New()

	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/lodges", func(r chi.Router) {
		r.Get("/", h.listLodges)
		r.Get("/featured", h.featured)
		r.Get("/nearby", h.nearby)
		r.Get("/{id}", h.getLodge)
		r.Get("/{id}/bookmarks", h.bookmarkStatus)
		r.Post("/{id}/bookmarks", h.addBookmark)
		r.Delete("/{id}/bookmarks", h.removeBookmarks)
	})

	s.mux.Post("/v1/admin/login", h.login)
	s.mux.Route("/v1/admin/lodges", func(r chi.Router) {
		r.Use(h.Auth.Require)
		r.Get("/", h.adminList)
		r.Post("/", h.adminCreate)
		r.Get("/{id}", h.adminGet)
		r.Put("/{id}", h.adminUpdate)
		r.Delete("/{id}", h.adminDelete)
		r.Get("/{id}/subscribers", h.adminSubscribers)
		r.Post("/{id}/broadcast", h.adminBroadcast)
	})

	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/health", h.relayHealth)
		r.Post("/contact", h.contact)
		r.Post("/subscribe", h.subscribe)
		// arbitrary recipients, so admins only
		r.With(h.Auth.Require).Post("/broadcast", h.broadcast)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "lodge not found")
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeProblem(w, http.StatusConflict, "Confirmation Required", "repeat the request with confirm=true")
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeProblem(w, http.StatusInsufficientStorage, "Storage Full", "Storage full! Try using smaller images or fewer lodges.")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers 304 when the client already holds this version.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func pathID(r *http.Request) (int64, bool) {
	return parseID(chi.URLParam(r, "id"))
}

// where reads lat/lon query parameters; both or neither must be given.
func where(r *http.Request) (app.Where, error) {
	w := app.Where{IP: clientIP(r)}
	q := r.URL.Query()
	lat, lon := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if lat == "" && lon == "" {
		return w, nil
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err1 != nil || err2 != nil || la < -90 || la > 90 || lo < -180 || lo > 180 {
		return w, domain.Invalid("lat/lon", "both must be valid coordinates")
	}
	w.Coords = &domain.Coords{Lat: la, Lon: lo}
	return w, nil
}

/********** public lodges **********/

func (h *Handlers) listLodges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pr, err := app.ParsePriceRange(q.Get("price"))
	if err != nil {
		writeError(w, err)
		return
	}
	wh, err := where(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, h.Q.Search(r.Context(), app.Filters{
		Name:     q.Get("name"),
		Location: q.Get("location"),
		Price:    pr,
	}, wh))
}

func (h *Handlers) featured(w http.ResponseWriter, r *http.Request) {
	wh, err := where(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, h.Q.Featured(r.Context(), wh))
}

func (h *Handlers) nearby(w http.ResponseWriter, r *http.Request) {
	wh, err := where(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, h.Q.Nearby(r.Context(), wh))
}

func (h *Handlers) getLodge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	wh, err := where(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, cur, err := h.Q.GetLodge(r.Context(), id, wh)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, struct {
		domain.LodgeView
		Currency domain.Currency `json:"currency"`
	}{v, cur})
}

/********** bookmarks **********/

func (h *Handlers) bookmarkStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": h.B.Status(r.Context(), id)})
}

type bookmarkReq struct {
	Email string `json:"email"`
}

func (h *Handlers) addBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	var req bookmarkReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.B.Add(r.Context(), id, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) removeBookmarks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	if err := h.B.Remove(r.Context(), id, confirmed(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

const maxJSONBody = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "malformed JSON: "+err.Error())
	}
	return nil
}
