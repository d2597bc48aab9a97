package http

import (
	"net/http"
	"time"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
)

// handleRegister accepts email and password as JSON or form fields.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	u, err := s.deps.Auth.Register(ctx, p.Get("email"), p.Get("password"))
	if err != nil {
		writeServiceError(w, r, applog.OpRegister, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]string{"id": u.ID, "email": u.Email}).
		Write(w)
}

// handleLogin returns the session token and sets it as a cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	sess, err := s.deps.Auth.Login(ctx, p.Get("email"), p.Get("password"))
	if err != nil {
		writeServiceError(w, r, applog.OpLogin, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	NewResponse().JSON(sess).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	NewResponse().Status(http.StatusNoContent).Write(w)
}
