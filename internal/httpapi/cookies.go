package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/classgate"
)

func (s *Server) setSessionCookies(w http.ResponseWriter, session *classgate.Session) {
	http.SetCookie(w, s.cookie(classgate.AccessCookieName, session.AccessToken, s.svc.AccessTTL()))
	http.SetCookie(w, s.cookie(classgate.RefreshCookieName, session.RefreshToken, s.svc.RefreshTTL()))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{classgate.AccessCookieName, classgate.RefreshCookieName} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: s.opts.SameSite,
	}
}
