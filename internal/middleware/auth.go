package middleware

import (
	"context"
	"strings"

	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/authenticator"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/router"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

type AuthVerifier struct {
	tokenEngine authenticator.TokenEngine[model.AccessToken]
}

func NewAuthVerifier(tokenEngine authenticator.TokenEngine[model.AccessToken]) *AuthVerifier {
	return &AuthVerifier{tokenEngine: tokenEngine}
}

// Middleware identifies the caller from the Authorization header or the
// access token cookie. Requests without a valid token pass anonymously.
func (a *AuthVerifier) Middleware() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		token := a.accessToken(ctx)
		if token == "" {
			return nil, nil
		}

		info, err := a.tokenEngine.Verify(token)
		if err != nil {
			xcontext.Logger(ctx).Debugf("Cannot verify access token: %v", err)
			return nil, nil
		}

		return xcontext.WithRequestUserID(ctx, strings.ToLower(info.Address)), nil
	}
}

func (a *AuthVerifier) accessToken(ctx context.Context) string {
	req := xcontext.HTTPRequest(ctx)
	if req == nil {
		return ""
	}

	if auth := req.Header.Get("Authorization"); auth != "" {
		scheme, token, found := strings.Cut(auth, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	cookie, err := req.Cookie(xcontext.Configs(ctx).Auth.AccessToken.Name)
	if err != nil {
		return ""
	}

	return cookie.Value
}

func Authenticate() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		if xcontext.RequestUserID(ctx) == "" {
			return nil, errorx.New(errorx.Unauthenticated, "Need to authenticate before")
		}

		return nil, nil
	}
}
