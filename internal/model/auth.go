package model

type AccessToken struct {
	Address string `json:"address"`
}

type WalletLoginRequest struct {
	Address string `form:"address"`
}

type WalletLoginResponse struct {
	Nonce string `json:"nonce"`

	Address string `json:"-"`
}

func (r WalletLoginResponse) SessionInfo() map[string]any {
	return map[string]any{"nonce": r.Nonce, "address": r.Address}
}

type WalletVerifyRequest struct {
	Signature string `json:"signature"`
}

type WalletVerifyResponse struct {
	AccessToken string `json:"access_token"`
	Address     string `json:"address"`
}

func (r WalletVerifyResponse) AccessTokenInfo() string {
	return r.AccessToken
}
