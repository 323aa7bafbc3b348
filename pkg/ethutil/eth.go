package ethutil

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid signature")

// GeneratePrivateKey derives a deterministic key from secret and nonce.
func GeneratePrivateKey(secret, nonce []byte) (*ecdsa.PrivateKey, error) {
	seed := sha256.Sum256(append(append([]byte{}, secret...), nonce...))
	randomSeed := bytes.Repeat(seed[:], 2)
	reader := bytes.NewReader(randomSeed)
	return ecdsa.GenerateKey(ethcrypto.S256(), reader)
}

func GeneratePublicKey(secret, nonce []byte) (common.Address, error) {
	walletPrivateKey, err := GeneratePrivateKey(secret, nonce)
	if err != nil {
		return common.Address{}, err
	}

	return ethcrypto.PubkeyToAddress(walletPrivateKey.PublicKey), nil
}

// NormalizeAddress returns the lower-cased 0x form of a hex address. The
// second result is false when s is not an address.
func NormalizeAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", false
	}

	return strings.ToLower(common.HexToAddress(s).Hex()), true
}

func IsZeroAddress(s string) bool {
	return common.HexToAddress(s) == (common.Address{})
}

// RecoverPersonalSign returns the signer of an EIP-191 personal message.
func RecoverPersonalSign(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	// Wallets sign with V in {27, 28}.
	if sig[ethcrypto.RecoveryIDOffset] >= 27 {
		sig[ethcrypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := ethcrypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	return ethcrypto.PubkeyToAddress(*pubkey), nil
}
