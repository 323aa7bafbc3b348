package domain

import (
	"context"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/cache"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

type NameDomain interface {
	Lookup(context.Context, *model.LookupNamesRequest) (*model.LookupNamesResponse, error)
}

// NameResolver is satisfied by *ens.Resolver.
type NameResolver interface {
	LookupAddress(ctx context.Context, address ethcommon.Address) (string, error)
}

type nameDomain struct {
	resolver NameResolver
	cache    *cache.Cache[string]
}

func NewNameDomain(ctx context.Context, resolver NameResolver) *nameDomain {
	cfg := xcontext.Configs(ctx).Ens
	return &nameDomain{
		resolver: resolver,
		cache:    cache.New[string](cfg.CacheSize, cfg.CacheTTL),
	}
}

func (d *nameDomain) Lookup(
	ctx context.Context, req *model.LookupNamesRequest,
) (*model.LookupNamesResponse, error) {
	addresses := []string{}
	for _, s := range strings.Split(req.Addresses, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}

		address, err := normalizeAddress(s)
		if err != nil {
			return nil, err
		}

		addresses = append(addresses, address)
	}

	if len(addresses) == 0 {
		return nil, errorx.New(errorx.BadRequest, "Require at least one address")
	}

	if max := xcontext.Configs(ctx).ApiServer.MaxLimit; len(addresses) > max {
		return nil, errorx.New(errorx.BadRequest, "Too many addresses, maximum is %d", max)
	}

	names := map[string]string{}
	for _, address := range addresses {
		if _, ok := names[address]; ok {
			continue
		}

		if name, ok := d.cache.Get(address); ok {
			names[address] = name
			continue
		}

		name, err := d.resolver.LookupAddress(ctx, ethcommon.HexToAddress(address))
		if err != nil {
			// Not cached, the next request tries again.
			xcontext.Logger(ctx).Warnf("Cannot lookup name of %s: %v", address, err)
			names[address] = ""
			continue
		}

		d.cache.Set(address, name)
		names[address] = name
	}

	return &model.LookupNamesResponse{Names: names}, nil
}
