package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/usecase"
)

const serviceRole = "service_role"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims is the subset of a Supabase access token this service reads.
type AccessClaims struct {
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) isService() bool {
	return c.Role == serviceRole || c.AppMetadata.Role == serviceRole
}

// Authenticator verifies bearer tokens: HS256 user tokens signed with the
// project secret, or the service role key itself.
type Authenticator struct {
	secret     []byte
	serviceKey string
}

func NewAuthenticator(jwtSecret, serviceRoleKey string) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), serviceKey: serviceRoleKey}
}

func (a *Authenticator) ParseFromRequest(r *http.Request) (usecase.Caller, error) {
	hdr := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return usecase.Caller{}, ErrMissingToken
	}
	tok := strings.TrimSpace(hdr[7:])
	if tok == "" {
		return usecase.Caller{}, ErrMissingToken
	}
	if a.serviceKey != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(a.serviceKey)) == 1 {
		return usecase.Caller{ServiceRole: true}, nil
	}
	return a.parse(tok)
}

func (a *Authenticator) parse(tok string) (usecase.Caller, error) {
	claims := &AccessClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return usecase.Caller{}, ErrInvalidToken
	}
	if claims.isService() {
		return usecase.Caller{UserID: claims.Subject, ServiceRole: true}, nil
	}
	if claims.Subject == "" {
		return usecase.Caller{}, ErrInvalidToken
	}
	return usecase.Caller{UserID: claims.Subject}, nil
}

type callerKey struct{}

func WithCaller(ctx context.Context, c usecase.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by RequireAuth.
func CallerFrom(ctx context.Context) (usecase.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(usecase.Caller)
	return c, ok
}

// RequireAuth rejects requests without a valid bearer with 401 before any
// handler work happens.
func RequireAuth(a *Authenticator, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := a.ParseFromRequest(r)
			if err != nil {
				logging.With(r.Context(), logger).Debug().Err(err).Str("path", r.URL.Path).Msg("auth rejected")
				WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: "Unauthorized"})
				return
			}
			ctx := WithCaller(r.Context(), caller)
			if caller.UserID != "" {
				ctx = logging.WithUserID(ctx, caller.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
