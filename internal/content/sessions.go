package content

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/auth"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/query"
)

// Session describes the caller's login state.
type Session struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) login(r *http.Request) (handler.Reply, error) {
	var payload map[string]interface{}
	if err := handler.DecodeJSON(r, &payload); err != nil {
		return handler.Reply{}, err
	}
	if missing := query.RequireFields(payload, "username", "password"); len(missing) > 0 {
		return handler.Reply{}, apperr.MissingFields(missing)
	}
	creds, err := convert[credentials](payload)
	if err != nil {
		return handler.Reply{}, err
	}
	if s.cfg.AdminPasswordHash == "" || s.cfg.Verifier == nil {
		return handler.Reply{}, apperr.ServiceUnavailable("admin login is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(s.cfg.AdminUser)) == 1
	passErr := auth.CheckPassword(s.cfg.AdminPasswordHash, creds.Password)
	if !userOK || passErr != nil {
		s.cfg.Logger.Info("admin login failed", "request_id", handler.RequestID(r.Context()))
		return handler.Reply{}, apperr.Unauthorized("invalid credentials")
	}

	token, err := s.cfg.Verifier.Sign(creds.Username, auth.RoleAdmin, s.cfg.SessionTTL)
	if err != nil {
		return handler.Reply{}, err
	}
	claims, err := s.cfg.Verifier.Claims(token)
	if err != nil {
		return handler.Reply{}, err
	}
	expires := claims.ExpiresAt.Time
	return handler.OK(Session{Authenticated: true, Username: creds.Username, ExpiresAt: &expires}).
		WithMessage("logged in").
		WithCookie(s.cfg.Verifier.SessionCookie(token, s.cfg.SessionTTL)), nil
}

func (s *Service) logout(r *http.Request) (handler.Reply, error) {
	reply := handler.OK(Session{}).WithMessage("logged out")
	if s.cfg.Verifier != nil {
		reply = reply.WithCookie(s.cfg.Verifier.ClearCookie())
	}
	return reply, nil
}

func (s *Service) session(r *http.Request) (handler.Reply, error) {
	if s.cfg.Verifier == nil {
		return handler.OK(Session{}), nil
	}
	claims, err := s.cfg.Verifier.Claims(auth.TokenFromRequest(r, s.cfg.Verifier.CookieName()))
	if err != nil || claims.Role != auth.RoleAdmin {
		return handler.OK(Session{}), nil
	}
	expires := claims.ExpiresAt.Time
	return handler.OK(Session{Authenticated: true, Username: claims.Subject, ExpiresAt: &expires}), nil
}
