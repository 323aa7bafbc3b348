package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/paynow"
	"github.com/scanpay-lab/backend/pkg/pubsub"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type MerchantDomain interface {
	Decode(context.Context, *model.DecodeQRRequest) (*model.DecodeQRResponse, error)
	Resolve(context.Context, *model.ResolveQRRequest) (*model.ResolveQRResponse, error)
	IsRegistered(context.Context, *model.IsRegisteredRequest) (*model.IsRegisteredResponse, error)
	OwnerOf(context.Context, *model.OwnerOfRequest) (*model.OwnerOfResponse, error)
	Register(context.Context, *model.RegisterMerchantRequest) (*model.RegisterMerchantResponse, error)
	Total(context.Context, *model.GetTotalMerchantsRequest) (*model.GetTotalMerchantsResponse, error)
	GetMine(context.Context, *model.GetMyMerchantsRequest) (*model.GetMyMerchantsResponse, error)
}

type merchantDomain struct {
	merchantRepo repository.MerchantRepository
	publisher    pubsub.Publisher
}

func NewMerchantDomain(
	merchantRepo repository.MerchantRepository,
	publisher pubsub.Publisher,
) *merchantDomain {
	return &merchantDomain{
		merchantRepo: merchantRepo,
		publisher:    publisher,
	}
}

func (d *merchantDomain) Decode(
	ctx context.Context, req *model.DecodeQRRequest,
) (*model.DecodeQRResponse, error) {
	return &model.DecodeQRResponse{Decoded: convertDecodedQR(paynow.Decode(req.Payload))}, nil
}

func (d *merchantDomain) Resolve(
	ctx context.Context, req *model.ResolveQRRequest,
) (*model.ResolveQRResponse, error) {
	key, keyHash := qrKey(req.Payload)
	if key == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty QR payload")
	}

	resp := &model.ResolveQRResponse{Decoded: convertDecodedQR(paynow.Decode(key))}
	merchant, err := d.merchantRepo.GetByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}

		xcontext.Logger(ctx).Errorf("Cannot get merchant: %v", err)
		return nil, errorx.Unknown
	}

	resp.IsRegistered = true
	resp.Owner = merchant.Owner
	resp.TokenID = merchant.TokenID
	return resp, nil
}

func (d *merchantDomain) IsRegistered(
	ctx context.Context, req *model.IsRegisteredRequest,
) (*model.IsRegisteredResponse, error) {
	_, keyHash := qrKey(req.Payload)
	_, err := d.merchantRepo.GetByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.IsRegisteredResponse{IsRegistered: false}, nil
		}

		xcontext.Logger(ctx).Errorf("Cannot get merchant: %v", err)
		return nil, errorx.Unknown
	}

	return &model.IsRegisteredResponse{IsRegistered: true}, nil
}

func (d *merchantDomain) OwnerOf(
	ctx context.Context, req *model.OwnerOfRequest,
) (*model.OwnerOfResponse, error) {
	_, keyHash := qrKey(req.Payload)
	merchant, err := d.merchantRepo.GetByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "QR code is not registered")
		}

		xcontext.Logger(ctx).Errorf("Cannot get merchant: %v", err)
		return nil, errorx.Unknown
	}

	return &model.OwnerOfResponse{Owner: merchant.Owner, TokenID: merchant.TokenID}, nil
}

func (d *merchantDomain) Register(
	ctx context.Context, req *model.RegisterMerchantRequest,
) (*model.RegisterMerchantResponse, error) {
	owner, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	key, keyHash := qrKey(req.Payload)
	if key == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty QR payload")
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	// Taking the token id first serializes registrations, so the key check
	// below sees every committed merchant. Ids are sequential from 0.
	tokenID, err := d.merchantRepo.NextTokenID(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get next token id: %v", err)
		return nil, errorx.New(errorx.Unavailable, "Cannot register the QR code now, please try again")
	}

	_, err = d.merchantRepo.GetByKeyHash(ctx, keyHash)
	if err == nil {
		return nil, errorx.New(errorx.AlreadyExists, "QR code already registered")
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get merchant: %v", err)
		return nil, errorx.Unknown
	}

	decoded := paynow.Decode(key)
	merchant := &entity.Merchant{
		Base:       entity.Base{ID: uuid.NewString()},
		KeyHash:    keyHash,
		Payload:    key,
		TokenID:    tokenID,
		Owner:      owner,
		ProxyType:  decoded.ProxyType,
		ProxyValue: decoded.ProxyValue,
		IsPayNow:   decoded.IsPayNow,
	}

	if err := d.merchantRepo.Create(ctx, merchant); err != nil {
		xcontext.WithRollbackDBTransaction(ctx)

		// Lost a race against another registration.
		if _, getErr := d.merchantRepo.GetByKeyHash(ctx, keyHash); getErr == nil {
			return nil, errorx.New(errorx.AlreadyExists, "QR code already registered")
		}

		xcontext.Logger(ctx).Errorf("Cannot create merchant: %v", err)
		return nil, errorx.New(errorx.Unavailable, "Cannot register the QR code now, please try again")
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot commit transaction: %v", err)
		return nil, errorx.Unknown
	}

	publish(ctx, d.publisher, model.MerchantRegisteredTopic, owner, model.MerchantRegisteredMessage{
		TokenID: merchant.TokenID,
		Owner:   merchant.Owner,
		Payload: merchant.Payload,
	})

	return &model.RegisterMerchantResponse{Merchant: convertMerchant(merchant)}, nil
}

func (d *merchantDomain) Total(
	ctx context.Context, req *model.GetTotalMerchantsRequest,
) (*model.GetTotalMerchantsResponse, error) {
	total, err := d.merchantRepo.Count(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count merchants: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetTotalMerchantsResponse{Total: total}, nil
}

func (d *merchantDomain) GetMine(
	ctx context.Context, req *model.GetMyMerchantsRequest,
) (*model.GetMyMerchantsResponse, error) {
	owner, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	offset, limit, err := paginate(ctx, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}

	merchants, err := d.merchantRepo.GetListByOwner(ctx, owner, offset, limit)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get merchants of %s: %v", owner, err)
		return nil, errorx.Unknown
	}

	result := []model.Merchant{}
	for i := range merchants {
		result = append(result, convertMerchant(&merchants[i]))
	}

	return &model.GetMyMerchantsResponse{Merchants: result}, nil
}
