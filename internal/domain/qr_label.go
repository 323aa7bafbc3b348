package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

const maxQRLabelNameLength = 64

type QRLabelDomain interface {
	Add(context.Context, *model.AddQRLabelRequest) (*model.AddQRLabelResponse, error)
	Rename(context.Context, *model.RenameQRLabelRequest) (*model.RenameQRLabelResponse, error)
	Delete(context.Context, *model.DeleteQRLabelRequest) (*model.DeleteQRLabelResponse, error)
	Get(context.Context, *model.GetQRLabelRequest) (*model.GetQRLabelResponse, error)
	GetName(context.Context, *model.GetQRLabelNameRequest) (*model.GetQRLabelNameResponse, error)
	GetList(context.Context, *model.GetQRLabelsRequest) (*model.GetQRLabelsResponse, error)
}

type qrLabelDomain struct {
	qrLabelRepo repository.QRLabelRepository
}

func NewQRLabelDomain(qrLabelRepo repository.QRLabelRepository) *qrLabelDomain {
	return &qrLabelDomain{qrLabelRepo: qrLabelRepo}
}

func checkQRLabelName(name string) error {
	if len(name) > maxQRLabelNameLength {
		return errorx.New(errorx.BadRequest, "Name too long (at most %d characters)", maxQRLabelNameLength)
	}

	return nil
}

func (d *qrLabelDomain) Add(
	ctx context.Context, req *model.AddQRLabelRequest,
) (*model.AddQRLabelResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	key, keyHash := qrKey(req.Payload)
	if key == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty QR payload")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultQRLabelName
	}

	if err := checkQRLabelName(name); err != nil {
		return nil, err
	}

	_, err = d.qrLabelRepo.Get(ctx, wallet, keyHash)
	if err == nil {
		return nil, errorx.New(errorx.AlreadyExists, "QR code already registered")
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get qr label: %v", err)
		return nil, errorx.Unknown
	}

	label := &entity.QRLabel{
		Base:         entity.Base{ID: uuid.NewString()},
		Wallet:       wallet,
		KeyHash:      keyHash,
		Payload:      key,
		Name:         name,
		TxHash:       strings.TrimSpace(req.TxHash),
		RegisteredAt: time.Now(),
	}

	if err := d.qrLabelRepo.Create(ctx, label); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create qr label: %v", err)
		return nil, errorx.Unknown
	}

	return &model.AddQRLabelResponse{Label: convertQRLabel(label)}, nil
}

func (d *qrLabelDomain) Rename(
	ctx context.Context, req *model.RenameQRLabelRequest,
) (*model.RenameQRLabelResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errorx.New(errorx.BadRequest, "Name must not be empty")
	}

	if err := checkQRLabelName(name); err != nil {
		return nil, err
	}

	_, keyHash := qrKey(req.Payload)
	if err := d.qrLabelRepo.UpdateName(ctx, wallet, keyHash, name); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found QR code")
		}

		xcontext.Logger(ctx).Errorf("Cannot rename qr label: %v", err)
		return nil, errorx.Unknown
	}

	return &model.RenameQRLabelResponse{}, nil
}

func (d *qrLabelDomain) Delete(
	ctx context.Context, req *model.DeleteQRLabelRequest,
) (*model.DeleteQRLabelResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	_, keyHash := qrKey(req.Payload)
	if err := d.qrLabelRepo.Delete(ctx, wallet, keyHash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found QR code")
		}

		xcontext.Logger(ctx).Errorf("Cannot delete qr label: %v", err)
		return nil, errorx.Unknown
	}

	return &model.DeleteQRLabelResponse{}, nil
}

func (d *qrLabelDomain) Get(
	ctx context.Context, req *model.GetQRLabelRequest,
) (*model.GetQRLabelResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	_, keyHash := qrKey(req.Payload)
	label, err := d.qrLabelRepo.Get(ctx, wallet, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found QR code")
		}

		xcontext.Logger(ctx).Errorf("Cannot get qr label: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetQRLabelResponse{Label: convertQRLabel(label)}, nil
}

func (d *qrLabelDomain) GetName(
	ctx context.Context, req *model.GetQRLabelNameRequest,
) (*model.GetQRLabelNameResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	_, keyHash := qrKey(req.Payload)
	label, err := d.qrLabelRepo.Get(ctx, wallet, keyHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.GetQRLabelNameResponse{Name: unknownQRLabelName}, nil
		}

		xcontext.Logger(ctx).Errorf("Cannot get qr label: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetQRLabelNameResponse{Name: label.Name}, nil
}

func (d *qrLabelDomain) GetList(
	ctx context.Context, req *model.GetQRLabelsRequest,
) (*model.GetQRLabelsResponse, error) {
	wallet, err := requestAddress(ctx)
	if err != nil {
		return nil, err
	}

	labels, err := d.qrLabelRepo.GetListByWallet(ctx, wallet)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get qr labels: %v", err)
		return nil, errorx.Unknown
	}

	result := []model.QRLabel{}
	for i := range labels {
		result = append(result, convertQRLabel(&labels[i]))
	}

	return &model.GetQRLabelsResponse{Labels: result}, nil
}
