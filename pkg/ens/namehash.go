package ens

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// NameHash computes the EIP-137 node of a dotted name. The empty name maps
// to the zero node.
func NameHash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}

	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := keccak256([]byte(labels[i]))
		node = common.BytesToHash(keccak256(node[:], labelHash))
	}

	return node
}

// ReverseName returns the name under which the primary name of address is
// recorded.
func ReverseName(address common.Address) string {
	return strings.ToLower(address.Hex()[2:]) + ".addr.reverse"
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}

	return h.Sum(nil)
}
