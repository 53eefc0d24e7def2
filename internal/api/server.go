package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/reclaim/internal/identity"
	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/matching"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

const maxBodyBytes = 1 << 20

// Verifier turns a bearer token into a principal.
type Verifier interface {
	Verify(token string) (models.Principal, error)
}

// anonymousAdmin is the principal used when authentication is disabled.
var anonymousAdmin = models.Principal{UserID: "anonymous", Role: models.RoleAdmin}

// Server is an HTTP API server that exposes entry and match operations.
type Server struct {
	reports  *reports.Service
	matching *matching.Service
	verifier Verifier // nil = auth disabled
	logger   *slog.Logger
}

// NewServer creates a new Server with the given dependencies. A nil
// verifier disables authentication.
func NewServer(rep *reports.Service, match *matching.Service, verifier Verifier, logger *slog.Logger) *Server {
	return &Server{
		reports:  rep,
		matching: match,
		verifier: verifier,
		logger:   logger,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check and counters: no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /debug/vars", expvar.Handler())

	mux.HandleFunc("POST /v1/entries", s.auth(s.handleSubmit))
	mux.HandleFunc("GET /v1/entries", s.auth(s.handleListEntries))
	mux.HandleFunc("GET /v1/entries/{id}", s.auth(s.handleGetEntry))
	mux.HandleFunc("DELETE /v1/entries/{id}", s.auth(s.handleDeleteEntry))
	mux.HandleFunc("POST /v1/entries/{id}/status", s.auth(s.handleUpdateStatus))

	mux.HandleFunc("GET /v1/matches", s.auth(s.handleMatches))
	mux.HandleFunc("POST /v1/matches/{lostId}/{foundId}/review", s.auth(s.handleReview))
	mux.HandleFunc("POST /v1/matches/{lostId}/{foundId}/contact", s.auth(s.handleContact))

	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))

	return mux
}

// --- middleware ---

// auth resolves the caller from the Bearer token and stores it in the
// request context.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			next(w, r.WithContext(identity.WithPrincipal(r.Context(), anonymousAdmin)))
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Debug("rejected token", "error", err)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	}
}

func principal(r *http.Request) models.Principal {
	p, _ := identity.FromContext(r.Context())
	return p
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitRequest is the body accepted by POST /v1/entries.
type submitRequest struct {
	Type       string      `json:"type"`
	Document   string      `json:"document"`
	Name       string      `json:"name"`
	Location   string      `json:"location"`
	Geo        *geoRequest `json:"geo"`
	DateLost   string      `json:"date_lost"`
	DateFound  string      `json:"date_found"`
	OwnerEmail string      `json:"owner_email"`
	Contact    string      `json:"contact"`
	Details    string      `json:"details"`
}

// geoRequest keeps missing coordinates distinguishable from zero.
type geoRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// toGeo returns nil for an absent or empty geo object, and an error when
// only one coordinate is given.
func (g *geoRequest) toGeo() (*models.Geo, error) {
	if g == nil || (g.Lat == nil && g.Lon == nil) {
		return nil, nil
	}
	if g.Lat == nil || g.Lon == nil {
		return nil, errors.New("geo needs both lat and lon")
	}
	return &models.Geo{Lat: *g.Lat, Lon: *g.Lon}, nil
}

// submitResponse is returned by POST /v1/entries.
type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	et, err := models.ParseEntryType(req.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "type must be Lost or Found")
		return
	}

	geo, err := req.Geo.toGeo()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.reports.Submit(r.Context(), principal(r), models.Entry{
		Type:       et,
		Document:   req.Document,
		Name:       req.Name,
		Location:   req.Location,
		Geo:        geo,
		DateLost:   req.DateLost,
		DateFound:  req.DateFound,
		OwnerEmail: req.OwnerEmail,
		Contact:    req.Contact,
		Details:    req.Details,
	})
	if err != nil {
		s.writeServiceError(w, err, "submit entry")
		return
	}

	s.writeJSON(w, http.StatusCreated, submitResponse{ID: e.ID})
}

// listResponse is returned by GET /v1/entries.
type listResponse struct {
	Entries []models.Entry `json:"entries"`
	Count   int            `json:"count"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := reports.Query{Text: params.Get("q")}

	if v := params.Get("type"); v != "" {
		et, err := models.ParseEntryType(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "type must be Lost or Found")
			return
		}
		q.Type = &et
	}
	if v := params.Get("status"); v != "" {
		st, err := models.ParseEntryStatus(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		q.Status = &st
	}
	if v := params.Get("mine"); v != "" {
		mine, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "mine must be a boolean")
			return
		}
		q.Mine = mine
	}

	entries, err := s.reports.List(r.Context(), principal(r), q)
	if err != nil {
		s.writeServiceError(w, err, "list entries")
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{Entries: entries, Count: len(entries)})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	e, err := s.reports.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "get entry")
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.reports.Delete(r.Context(), principal(r), id); err != nil {
		s.writeServiceError(w, err, "delete entry")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// statusRequest is the body accepted by POST /v1/entries/{id}/status.
type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, err := models.ParseEntryStatus(req.Status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	e, err := s.reports.UpdateStatus(r.Context(), principal(r), r.PathValue("id"), next)
	if err != nil {
		s.writeServiceError(w, err, "update status")
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// matchesResponse is returned by GET /v1/matches.
type matchesResponse struct {
	Matches []models.Match `json:"matches"`
	Count   int            `json:"count"`
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.matching.ForPrincipal(r.Context(), principal(r), r.URL.Query().Get("view"))
	if err != nil {
		s.writeServiceError(w, err, "compute matches")
		return
	}
	s.writeJSON(w, http.StatusOK, matchesResponse{Matches: matches, Count: len(matches)})
}

// reviewRequest is the body accepted by POST /v1/matches/{lostId}/{foundId}/review.
type reviewRequest struct {
	Status models.MatchStatus `json:"status"`
	Note   string             `json:"note"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != models.MatchConfirmed && req.Status != models.MatchRejected {
		s.writeError(w, http.StatusBadRequest, "status must be Confirmed or Rejected")
		return
	}

	review, err := s.matching.Review(r.Context(), principal(r), r.PathValue("lostId"), r.PathValue("foundId"), req.Status, req.Note)
	if err != nil {
		s.writeServiceError(w, err, "review match")
		return
	}
	s.writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	review, err := s.matching.Contact(r.Context(), principal(r), r.PathValue("lostId"), r.PathValue("foundId"))
	if err != nil {
		s.writeServiceError(w, err, "record contact")
		return
	}
	s.writeJSON(w, http.StatusOK, review)
}

// statsResponse is returned by GET /v1/stats.
type statsResponse struct {
	Entries *models.EntryStats `json:"entries"`
	Matches matching.Stats     `json:"matches"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	entryStats, err := s.reports.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "get stats")
		return
	}
	matches, err := s.matching.ForPrincipal(r.Context(), principal(r), "")
	if err != nil {
		s.writeServiceError(w, err, "get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{Entries: entryStats, Matches: matching.Summarize(matches)})
}

// --- helpers ---

// writeServiceError maps service sentinel errors to status codes. Anything
// unrecognized is logged and reported as a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, models.ErrInvalidEntry):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidToken):
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, reports.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, matcher.ErrBudgetExceeded):
		s.writeError(w, http.StatusUnprocessableEntity, "too many entries to match in one request")
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
