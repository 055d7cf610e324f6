package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the role claim every admin token carries.
const AdminRole = "platform_admin"

const issuer = "schoolhost"

type adminCtxKey struct{}

// AdminClaims are the claims of an admin API token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthenticator is middleware that validates HS256 admin tokens
type AdminAuthenticator struct {
	secret []byte
	clock  clock.Clock
}

// NewAdminAuthenticator creates a new admin authenticator middleware
func NewAdminAuthenticator(secret string, clk clock.Clock) *AdminAuthenticator {
	if clk == nil {
		clk = clock.New()
	}
	return &AdminAuthenticator{secret: []byte(secret), clock: clk}
}

// Issue signs a token for subject that expires after ttl.
func (a *AdminAuthenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin token secret is not configured")
	}
	now := a.clock.Now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses tokenString and returns its subject.
func (a *AdminAuthenticator) Verify(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin token secret is not configured")
	}
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return "", err
	}
	if claims.Role != AdminRole {
		return "", errors.New("token does not carry the admin role")
	}
	return claims.Subject, nil
}

// Middleware returns an HTTP middleware that requires a valid admin token
func (a *AdminAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) == 0 {
			writeError(w, http.StatusUnauthorized, "authorization missing")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "malformed authorization header")
			return
		}

		subject, err := a.Verify(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), adminCtxKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminFromContext returns the subject of the admin token of the request.
func AdminFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(adminCtxKey{}).(string)
	return subject, ok
}
