// Package ens looks up primary ENS names of addresses.
package ens

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const registryABI = `[{"inputs":[{"internalType":"bytes32","name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

const resolverABI = `[
	{"inputs":[{"internalType":"bytes32","name":"node","type":"bytes32"}],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"bytes32","name":"node","type":"bytes32"}],"name":"addr","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var (
	registry = mustParseABI(registryABI)
	resolver = mustParseABI(resolverABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}

	return parsed
}

type Resolver struct {
	caller   ethereum.ContractCaller
	registry common.Address
}

func NewResolver(caller ethereum.ContractCaller, registryAddress common.Address) *Resolver {
	return &Resolver{caller: caller, registry: registryAddress}
}

// LookupAddress returns the primary name of address, or an empty string if
// it has none. A reverse record counts only when the name resolves back to
// the same address.
func (r *Resolver) LookupAddress(ctx context.Context, address common.Address) (string, error) {
	reverseNode := NameHash(ReverseName(address))
	reverseResolver, err := r.resolverOf(ctx, reverseNode)
	if err != nil {
		return "", err
	}

	if reverseResolver == (common.Address{}) {
		return "", nil
	}

	var name string
	if err := r.call(ctx, reverseResolver, resolver, &name, "name", reverseNode); err != nil {
		return "", err
	}

	if name == "" {
		return "", nil
	}

	resolved, err := r.Resolve(ctx, name)
	if err != nil {
		return "", err
	}

	if resolved != address {
		return "", nil
	}

	return name, nil
}

// Resolve returns the address a name points to, or the zero address if the
// name has no resolver.
func (r *Resolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	node := NameHash(name)
	nameResolver, err := r.resolverOf(ctx, node)
	if err != nil {
		return common.Address{}, err
	}

	if nameResolver == (common.Address{}) {
		return common.Address{}, nil
	}

	var address common.Address
	if err := r.call(ctx, nameResolver, resolver, &address, "addr", node); err != nil {
		return common.Address{}, err
	}

	return address, nil
}

func (r *Resolver) resolverOf(ctx context.Context, node common.Hash) (common.Address, error) {
	var address common.Address
	if err := r.call(ctx, r.registry, registry, &address, "resolver", node); err != nil {
		return common.Address{}, err
	}

	return address, nil
}

func (r *Resolver) call(
	ctx context.Context, to common.Address, contract abi.ABI, out any, method string, args ...any,
) error {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return err
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("cannot call %s on %s: %w", method, to, err)
	}

	if len(output) == 0 {
		return fmt.Errorf("empty response of %s from %s", method, to)
	}

	return contract.UnpackIntoInterface(out, method, output)
}
