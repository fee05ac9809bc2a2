package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/logging"
)

// ViewResponse is the JSON form of a derived view.
type ViewResponse struct {
	directory.View
	HasPrev     bool           `json:"has_prev"`
	HasNext     bool           `json:"has_next"`
	RecordCount int            `json:"record_count"`
	LoadError   *ErrorResponse `json:"load_error,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Sessions int                     `json:"sessions"`
	Fetches  core.FetchLimiterStatus `json:"fetches"`
}

type searchRequest struct {
	Text string `json:"text"`
}

type regionRequest struct {
	Region string `json:"region"`
}

func newViewResponse(sess *core.Session, v directory.View) ViewResponse {
	resp := ViewResponse{
		View:        v,
		HasPrev:     v.HasPrev(),
		HasNext:     v.HasNext(),
		RecordCount: sess.RecordCount(),
	}
	if err := sess.LoadErr(); err != nil {
		e := errorResponse(core.MapError(err))
		resp.LoadError = &e
	}
	return resp
}

// handleAPIView returns the current view, opening a session if needed.
func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, newViewResponse(sess, sess.View()))
}

func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, newViewResponse(sess, sess.SetSearchText(req.Text)))
}

func (s *Server) handleAPIRegion(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	region, err := parseRegion(req.Region)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, newViewResponse(sess, sess.SetRegionFilter(region)))
}

func (s *Server) handleAPINextPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, newViewResponse(sess, sess.NextPage()))
}

func (s *Server) handleAPIPrevPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, r, http.StatusOK, newViewResponse(sess, sess.PrevPage()))
}

// handleAPICloseSession drops the session and its cookie.
func (s *Server) handleAPICloseSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.service.Close(sess.ID())
	s.clearSessionCookie(w)
	logging.FromContext(r.Context()).Info("session closed",
		"age", time.Since(sess.CreatedAt()).Round(time.Second).String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleAPIRegions lists the selectable regions.
func (s *Server) handleAPIRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]directory.Region{"regions": directory.Regions()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.service.ActiveSessions(),
		Fetches:  s.service.FetchStatus(),
	})
}

// decodeJSON reads a small JSON body into v. An empty body leaves v zero.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Errorf("%w: %s", core.ErrInvalidRequest, err.Error())
	}
	return nil
}

// writeJSON encodes v and writes it with a content hash ETag. Conditional
// GETs whose If-None-Match matches get 304 without a body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	etag := contentETag(body)
	h := w.Header()
	h.Set("ETag", etag)
	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "private, no-cache")
	}

	if status == http.StatusOK && (r.Method == http.MethodGet || r.Method == http.MethodHead) &&
		etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func contentETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxh3.Hash(body))
}

// etagMatches implements the weak comparison used for If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
