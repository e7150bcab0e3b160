package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/middleware/security"
)

type brokerKey struct{}

// brokerFrom returns the approved broker loaded by requireApproved.
func brokerFrom(ctx context.Context) (core.Broker, bool) {
	b, ok := ctx.Value(brokerKey{}).(core.Broker)
	return b, ok
}

func (s *Server) principal(r *http.Request) (auth.Principal, bool) {
	c, err := r.Cookie(auth.CookieName)
	if err != nil || c.Value == "" {
		return auth.Principal{}, false
	}
	p, err := s.sessions.Verify(c.Value)
	if err != nil {
		return auth.Principal{}, false
	}
	return p, true
}

func (s *Server) setSession(w http.ResponseWriter, p auth.Principal) error {
	token, err := s.sessions.Issue(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL() / time.Second),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirect navigates the browser, through HX-Redirect for htmx requests.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func loginPath(role auth.Role) string {
	if role == auth.RoleAdmin {
		return "/admin/login"
	}
	return "/corretor/login"
}

// authorize requires a valid session whose role the route policy allows.
// Anonymous callers are sent to the login page of loginRole; signed-in
// callers without permission get 403.
func (s *Server) authorize(loginRole auth.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.principal(r)
		if !ok {
			target := loginPath(loginRole)
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			s.redirect(w, r, target)
			return
		}

		allowed, err := s.authorizer.Allow(p.Role, r.URL.Path, r.Method)
		if err != nil {
			s.serverError(w, r, "authorize", err)
			return
		}
		if !allowed {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Access denied",
				applog.FieldRole, string(p.Role),
				applog.FieldPath, r.URL.Path)
			s.renderError(w, r, http.StatusForbidden, "Você não tem acesso a esta página.")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireApproved lets only approved brokers through. Pending accounts wait
// on /corretor/aguardando; rejected or deleted accounts are signed out.
func (s *Server) requireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.PrincipalFrom(r.Context())
		b, err := s.store.GetBroker(r.Context(), p.ID)
		if errors.Is(err, core.ErrNotFound) {
			s.clearSession(w)
			s.redirect(w, r, "/corretor/login")
			return
		}
		if err != nil {
			s.serverError(w, r, "load broker", err)
			return
		}
		switch b.Status {
		case core.BrokerApproved:
			ctx := context.WithValue(r.Context(), brokerKey{}, b)
			next.ServeHTTP(w, r.WithContext(ctx))
		case core.BrokerRejected:
			s.clearSession(w)
			s.redirect(w, r, "/corretor/login?erro=reprovado")
		default:
			s.redirect(w, r, "/corretor/aguardando")
		}
	})
}

func (s *Server) adminOnly(h http.HandlerFunc) http.Handler {
	return security.NoStore(s.authorize(auth.RoleAdmin, h))
}

// brokerAny admits brokers in any status, for the waiting page.
func (s *Server) brokerAny(h http.HandlerFunc) http.Handler {
	return security.NoStore(s.authorize(auth.RoleBroker, h))
}

func (s *Server) brokerOnly(h http.HandlerFunc) http.Handler {
	return security.NoStore(s.authorize(auth.RoleBroker, s.requireApproved(h)))
}

// safeNext keeps post-login redirects inside the given area.
func safeNext(next, prefix, fallback string) string {
	if strings.HasPrefix(next, prefix) && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") {
		return next
	}
	return fallback
}
