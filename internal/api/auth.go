package api

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminCookieName   = "admin_session"
	adminSubject      = "admin"
	defaultSessionTTL = 12 * time.Hour
)

var errAdminDisabled = errors.New("admin password not configured")

// AdminAuth issues and checks the signed admin session cookie.
type AdminAuth struct {
	password string
	secret   []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewAdminAuth builds the authenticator. Without a configured session secret
// a random one is generated, so sessions do not survive a restart.
func NewAdminAuth(cfg config.AdminConfig) (*AdminAuth, error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &AdminAuth{
		password: cfg.Password,
		secret:   secret,
		ttl:      ttl,
		secure:   cfg.SecureCookie,
		now:      time.Now,
	}, nil
}

func (a *AdminAuth) Enabled() bool { return a.password != "" }

// CheckPassword compares against a bcrypt hash when one is configured and in
// constant time otherwise.
func (a *AdminAuth) CheckPassword(password string) bool {
	if !a.Enabled() || password == "" {
		return false
	}
	if isBcryptHash(a.password) {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Issue signs a new session token.
func (a *AdminAuth) Issue() (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, errAdminDisabled
	}
	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Valid reports whether token is an unexpired session signed with our secret.
func (a *AdminAuth) Valid(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Subject == adminSubject
}

func (a *AdminAuth) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AdminAuth) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Require rejects requests without a valid session cookie.
func (a *AdminAuth) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(adminCookieName)
		if err != nil || !a.Valid(c.Value) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}
