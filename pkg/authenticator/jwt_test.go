package authenticator_test

import (
	"testing"
	"time"

	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/pkg/authenticator"
	"github.com/stretchr/testify/require"
)

type accessToken struct {
	Address string `json:"address"`
}

func TestJWT(t *testing.T) {
	engine := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "secret",
		Expiration: time.Minute,
	})

	token, err := engine.Generate("0xabc", accessToken{Address: "0xabc"})
	require.NoError(t, err)

	obj, err := engine.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "0xabc", obj.Address)
}

func TestJWTExpiration(t *testing.T) {
	engine := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "secret",
		Expiration: -time.Minute,
	})

	token, err := engine.Generate("0xabc", accessToken{Address: "0xabc"})
	require.NoError(t, err)

	_, err = engine.Verify(token)
	require.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	engine := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "secret",
		Expiration: time.Minute,
	})

	other := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "other",
		Expiration: time.Minute,
	})

	token, err := other.Generate("0xabc", accessToken{Address: "0xabc"})
	require.NoError(t, err)

	_, err = engine.Verify(token)
	require.Error(t, err)
}

func TestJWTUniqueID(t *testing.T) {
	engine := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "secret",
		Expiration: time.Minute,
	})

	a, err := engine.Generate("0xabc", accessToken{Address: "0xabc"})
	require.NoError(t, err)
	b, err := engine.Generate("0xabc", accessToken{Address: "0xabc"})
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestJWTMalformed(t *testing.T) {
	engine := authenticator.NewTokenEngine[accessToken](config.TokenConfigs{
		Secret:     "secret",
		Expiration: time.Minute,
	})

	_, err := engine.Verify("not-a-token")
	require.Error(t, err)
}
