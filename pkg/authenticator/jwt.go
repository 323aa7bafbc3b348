package authenticator

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/config"
)

const issuer = "scanpay"

type claims[T any] struct {
	jwt.RegisteredClaims
	Object T `json:"obj,omitempty"`
}

// hmacEngine signs tokens with HS256 and a shared secret.
type hmacEngine[T any] struct {
	secret     []byte
	expiration time.Duration
	parser     *jwt.Parser
}

func NewTokenEngine[T any](cfg config.TokenConfigs) TokenEngine[T] {
	return &hmacEngine[T]{
		secret:     []byte(cfg.Secret),
		expiration: cfg.Expiration,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (e *hmacEngine[T]) Expiration() time.Duration {
	return e.expiration
}

func (e *hmacEngine[T]) Generate(sub string, obj T) (string, error) {
	now := time.Now()
	c := claims[T]{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.expiration)),
		},
		Object: obj,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(e.secret)
}

func (e *hmacEngine[T]) Verify(token string) (T, error) {
	var c claims[T]
	_, err := e.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return e.secret, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return c.Object, nil
}
