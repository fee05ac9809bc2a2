package web

import (
	"net/http"

	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/logging"
	"github.com/JonMunkholm/worldview/internal/web/templates"
)

// maxFormSize bounds form and JSON request bodies.
const maxFormSize = 4 << 10

// handleIndex renders the directory page.
//
// The filter form submits with GET, so "search" and "region" query
// parameters, when present, are applied to the session before rendering.
// Both are validated first; a rejected request leaves the session as it was.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	q := r.URL.Query()

	var change directory.FilterChange
	if q.Has("region") {
		region, err := parseRegion(q.Get("region"))
		if err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		change.Region = &region
	}
	if q.Has("search") {
		search := q.Get("search")
		change.SearchText = &search
	}

	if change.SearchText != nil || change.Region != nil {
		sess.UpdateFilter(change)
	}
	s.renderDirectory(w, r, sess, sess.View())
}

// handleSearch applies the posted search text.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	text := r.PostFormValue("search")

	v := sess.SetSearchText(text)
	logging.FromContext(r.Context()).Debug("search changed", "search", text, "matches", v.MatchCount)
	s.afterMutation(w, r, sess, v)
}

// handleRegion applies the posted region filter. An empty value clears it.
func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	region, err := parseRegion(r.PostFormValue("region"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())

	v := sess.SetRegionFilter(region)
	logging.FromContext(r.Context()).Debug("region changed", "region", region, "matches", v.MatchCount)
	s.afterMutation(w, r, sess, v)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.afterMutation(w, r, sess, sess.NextPage())
}

func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.afterMutation(w, r, sess, sess.PrevPage())
}

// afterMutation answers a form post: HTMX swaps get the directory partial,
// plain browsers are redirected back to the page (post/redirect/get).
func (s *Server) afterMutation(w http.ResponseWriter, r *http.Request, sess *core.Session, v directory.View) {
	if isHTMX(r) {
		s.renderDirectory(w, r, sess, v)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderDirectory renders the full page, or only the directory block for
// HTMX requests.
func (s *Server) renderDirectory(w http.ResponseWriter, r *http.Request, sess *core.Session, v directory.View) {
	data := templates.PageData{
		View:        v,
		Regions:     directory.Regions(),
		RecordCount: sess.RecordCount(),
	}
	if err := sess.LoadErr(); err != nil {
		msg := core.MapError(err)
		data.Alert = &templates.Alert{Message: msg.Message, Action: msg.Action, Code: msg.Code}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	component := templates.Page(data)
	if isHTMX(r) {
		component = templates.Directory(data)
	}
	if err := component.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "error", err)
	}
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		return errors.Errorf("%w: %s", core.ErrInvalidRequest, err.Error())
	}
	return nil
}

// parseRegion accepts a selectable region or "" for none.
func parseRegion(s string) (directory.Region, error) {
	region, ok := directory.ParseRegion(s)
	if !ok {
		return directory.RegionNone, errors.Errorf("%w: %q", directory.ErrUnknownRegion, s)
	}
	return region, nil
}
