package middleware

import (
	"context"
	"strings"

	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/router"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"golang.org/x/exp/slices"
)

func OnlyOperator() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		caller := xcontext.RequestUserID(ctx)
		if caller == "" {
			return nil, errorx.New(errorx.Unauthenticated, "Need to authenticate before")
		}

		operators := xcontext.Configs(ctx).Reward.Operators
		if slices.IndexFunc(operators, func(op string) bool { return strings.EqualFold(op, caller) }) < 0 {
			return nil, errorx.New(errorx.PermissionDenied, "Permission denied")
		}

		return nil, nil
	}
}
