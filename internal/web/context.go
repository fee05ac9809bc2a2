package web

import (
	"context"
	"net/http"

	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/logging"
)

type ctxKeySession struct{}

// sessionFrom returns the session attached by withSession.
func sessionFrom(ctx context.Context) *core.Session {
	sess, _ := ctx.Value(ctxKeySession{}).(*core.Session)
	return sess
}

// withSession resolves the session named by the session cookie and attaches
// it to the request context.
//
// When open is true a missing or expired session is replaced by a fresh
// one, which performs the one-time fetch. When open is false the request is
// rejected instead: plain form posts are sent back to "/", HTMX and JSON
// clients get SES001.
func (s *Server) withSession(open bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := s.lookupSession(r)
			if err != nil {
				if !open {
					if !isHTMX(r) && !wantsJSON(r) {
						http.Redirect(w, r, "/", http.StatusSeeOther)
						return
					}
					s.respondError(w, r, err, http.StatusNotFound)
					return
				}
				sess = s.service.Open(r.Context())
				s.setSessionCookie(w, sess.ID())
			}

			ctx := logging.ContextWithSessionID(r.Context(), sess.ID())
			ctx = context.WithValue(ctx, ctxKeySession{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) lookupSession(r *http.Request) (*core.Session, error) {
	c, err := r.Cookie(s.cfg.Session.CookieName)
	if err != nil || c.Value == "" {
		return nil, errors.Errorf("%w: no session cookie", core.ErrSessionNotFound)
	}
	return s.service.Get(c.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
