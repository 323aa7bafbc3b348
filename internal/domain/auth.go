package domain

import (
	"context"
	"strings"

	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/authenticator"
	"github.com/scanpay-lab/backend/pkg/crypto"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/ethutil"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

const walletNonceBytes = 16

type AuthDomain interface {
	WalletLogin(context.Context, *model.WalletLoginRequest) (*model.WalletLoginResponse, error)
	WalletVerify(context.Context, *model.WalletVerifyRequest) (*model.WalletVerifyResponse, error)
}

type authDomain struct {
	tokenEngine authenticator.TokenEngine[model.AccessToken]
}

func NewAuthDomain(tokenEngine authenticator.TokenEngine[model.AccessToken]) *authDomain {
	return &authDomain{tokenEngine: tokenEngine}
}

// WalletLogin returns the nonce the wallet must sign. The nonce and address
// are kept in the session by the HandleSaveSession middleware.
func (d *authDomain) WalletLogin(
	ctx context.Context, req *model.WalletLoginRequest,
) (*model.WalletLoginResponse, error) {
	address, err := normalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	nonce, err := crypto.GenerateRandomString(walletNonceBytes)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot generate nonce: %v", err)
		return nil, errorx.Unknown
	}

	return &model.WalletLoginResponse{Nonce: nonce, Address: address}, nil
}

func (d *authDomain) WalletVerify(
	ctx context.Context, req *model.WalletVerifyRequest,
) (*model.WalletVerifyResponse, error) {
	cfg := xcontext.Configs(ctx)
	store := xcontext.SessionStore(ctx)
	httpReq := xcontext.HTTPRequest(ctx)
	if store == nil || httpReq == nil {
		xcontext.Logger(ctx).Errorf("Session store or http request is missing")
		return nil, errorx.Unknown
	}

	session, err := store.Get(httpReq, cfg.Session.Name)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot get session: %v", err)
		return nil, errorx.New(errorx.Unauthenticated, "Please login again")
	}

	nonce, _ := session.Values["nonce"].(string)
	sessionAddress, _ := session.Values["address"].(string)
	if nonce == "" || sessionAddress == "" {
		return nil, errorx.New(errorx.Unauthenticated, "Please login again")
	}

	signer, err := ethutil.RecoverPersonalSign(nonce, req.Signature)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid signature")
	}

	if !strings.EqualFold(signer.Hex(), sessionAddress) {
		return nil, errorx.New(errorx.BadRequest, "Mismatched address")
	}

	// A nonce is used once.
	delete(session.Values, "nonce")
	delete(session.Values, "address")
	if w := xcontext.HTTPWriter(ctx); w != nil {
		if err := session.Save(httpReq, w); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot clear session: %v", err)
		}
	}

	address := strings.ToLower(signer.Hex())
	token, err := d.tokenEngine.Generate(address, model.AccessToken{Address: address})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot generate access token: %v", err)
		return nil, errorx.Unknown
	}

	return &model.WalletVerifyResponse{AccessToken: token, Address: address}, nil
}
