package domain

import (
	"context"
	"strings"

	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/ethutil"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"golang.org/x/exp/slices"
)

const (
	defaultQRLabelName = "Unnamed QR Code"
	unknownQRLabelName = "Unknown QR Code"
)

// requestAddress returns the wallet of the authenticated caller.
func requestAddress(ctx context.Context) (string, error) {
	address := xcontext.RequestUserID(ctx)
	if address == "" {
		return "", errorx.New(errorx.Unauthenticated, "Need to authenticate before")
	}

	return strings.ToLower(address), nil
}

func isOperator(ctx context.Context, address string) bool {
	operators := xcontext.Configs(ctx).Reward.Operators
	return slices.IndexFunc(operators, func(op string) bool {
		return strings.EqualFold(op, address)
	}) >= 0
}

func verifyOperator(ctx context.Context) (string, error) {
	address, err := requestAddress(ctx)
	if err != nil {
		return "", err
	}

	if !isOperator(ctx, address) {
		return "", errorx.New(errorx.PermissionDenied, "Only operator can do this action")
	}

	return address, nil
}

func normalizeAddress(s string) (string, error) {
	address, ok := ethutil.NormalizeAddress(s)
	if !ok {
		return "", errorx.New(errorx.BadRequest, "Invalid address %s", s)
	}

	return address, nil
}

// paginate clamps the client paging parameters to the server limits.
func paginate(ctx context.Context, offset, limit int) (int, int, error) {
	cfg := xcontext.Configs(ctx).ApiServer
	if offset < 0 {
		return 0, 0, errorx.New(errorx.BadRequest, "Offset must not be negative")
	}

	if limit == 0 {
		limit = cfg.DefaultLimit
	}

	if limit < 0 {
		return 0, 0, errorx.New(errorx.BadRequest, "Limit must be positive")
	}

	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		return 0, 0, errorx.New(errorx.BadRequest, "Exceed the maximum of limit (%d)", cfg.MaxLimit)
	}

	return offset, limit, nil
}
