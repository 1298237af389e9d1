// Package auth verifies admin session tokens and checks admin passwords.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the role carried by admin session tokens.
const RoleAdmin = "admin"

// DefaultCookieName is the session cookie read by IsAdmin.
const DefaultCookieName = "folio_session"

// DefaultBcryptCost is the cost used by HashPassword.
const DefaultBcryptCost = 12

var (
	ErrNoSecret        = errors.New("auth: signing secret is empty")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrInvalidPassword = errors.New("auth: invalid password")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config configures a Verifier.
type Config struct {
	Secret     []byte
	Issuer     string
	CookieName string
	// Clock replaces time.Now when validating expiry.
	Clock func() time.Time
}

// Verifier signs and verifies HS256 session tokens. It is safe for
// concurrent use.
type Verifier struct {
	secret []byte
	issuer string
	cookie string
	clock  func() time.Time
}

// NewVerifier creates a Verifier. The secret must not be empty.
func NewVerifier(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Verifier{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: cfg.Issuer,
		cookie: cfg.CookieName,
		clock:  cfg.Clock,
	}, nil
}

// CookieName returns the session cookie name.
func (v *Verifier) CookieName() string {
	return v.cookie
}

// Sign issues a token for subject with role, valid for ttl.
func (v *Verifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := v.clock()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Claims parses and validates token: HS256 signature, expiry (required)
// and issuer when one is configured.
func (v *Verifier) Claims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyToken reports whether token is validly signed and unexpired.
func (v *Verifier) VerifyToken(token string) bool {
	_, err := v.Claims(token)
	return err == nil
}

// IsAdmin reports whether r carries a valid admin token, from the session
// cookie or an Authorization bearer header. Any failure is false.
func (v *Verifier) IsAdmin(r *http.Request) bool {
	if v == nil || r == nil {
		return false
	}
	claims, err := v.Claims(TokenFromRequest(r, v.cookie))
	return err == nil && claims.Role == RoleAdmin
}

// TokenFromRequest returns the session token of r: the named cookie, else
// a bearer token.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// SessionCookie builds the cookie carrying token.
func (v *Verifier) SessionCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     v.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds the cookie that deletes the session.
func (v *Verifier) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     v.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against a bcrypt hash in constant time.
func CheckPassword(hash, password string) error {
	if hash == "" {
		// Compare anyway so an unset hash takes as long as a wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoO"), []byte(password))
		return ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
