package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/pos-settlement/internal/domain/auth"
	"github.com/xenking/pos-settlement/pkg/httpmiddleware"
)

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// SecurityHandler authenticates requests with HS256 bearer tokens issued
// by the identity service.
type SecurityHandler struct {
	secret []byte
}

func NewSecurityHandler(secret []byte) *SecurityHandler {
	return &SecurityHandler{secret: secret}
}

// Issue signs a token for the actor. It is used by tooling and tests; the
// identity service issues production tokens with the same secret.
func (s *SecurityHandler) Issue(a auth.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		CompanyID: a.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Parse validates a token and returns its actor.
func (s *SecurityHandler) Parse(token string) (auth.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return auth.Actor{}, errors.Wrap(auth.ErrUnauthenticated, err.Error())
	}
	if claims.CompanyID == "" {
		return auth.Actor{}, errors.Wrap(auth.ErrUnauthenticated, "token has no company")
	}
	return auth.Actor{UserID: claims.Subject, CompanyID: claims.CompanyID}, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// actor in the request context.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "missing bearer token", "unauthenticated")
			return
		}
		actor, err := s.Parse(token)
		if err != nil {
			zctx.From(r.Context()).Debug("Authentication failed", zap.Error(err))
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid bearer token", "unauthenticated")
			return
		}

		ctx := auth.WithActor(r.Context(), actor)
		ctx = zctx.With(ctx,
			zap.String("company_id", actor.CompanyID),
			zap.String("user_id", actor.UserID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
