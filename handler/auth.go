package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	slotleads "github.com/phbpx/slotleads"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

var errInvalidToken = errors.New("invalid token")

// Authenticator turns bearer tokens into caller identities. Requests without
// an Authorization header continue as slotleads.Anonymous.
type Authenticator struct {
	secret []byte
	log    *otelzap.SugaredLogger
}

func NewAuthenticator(secret string, log *otelzap.SugaredLogger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		log:    log,
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(rw, r)
			return
		}

		id, err := a.identity(header)
		if err != nil {
			a.log.Ctx(r.Context()).Errorw("Authenticate", "error", err.Error())
			respondErr(r.Context(), rw, http.StatusUnauthorized, errInvalidToken)
			return
		}

		ctx := slotleads.WithCaller(r.Context(), id)
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

func (a *Authenticator) identity(header string) (slotleads.Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return slotleads.Anonymous, errInvalidToken
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return slotleads.Anonymous, err
	}

	if claims.Subject == "" {
		return slotleads.Anonymous, errInvalidToken
	}
	return slotleads.Identity(claims.Subject), nil
}

// IssueToken signs a token for id that expires after ttl.
func IssueToken(secret string, id slotleads.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   string(id),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
