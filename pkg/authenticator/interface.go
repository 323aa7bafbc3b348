package authenticator

import "time"

type TokenEngine[T any] interface {
	Generate(sub string, obj T) (string, error)
	Verify(token string) (T, error)
	Expiration() time.Duration
}
