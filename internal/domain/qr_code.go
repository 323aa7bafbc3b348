package domain

import (
	"context"
	"strings"

	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/qrimage"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

const (
	minQRImageSize = 64
	maxQRImageSize = 1024
	// Base64 of a 10MB image.
	maxQRImageDataLength = 14 * 1024 * 1024
)

type QRCodeDomain interface {
	ScanImage(context.Context, *model.ScanQRImageRequest) (*model.ScanQRImageResponse, error)
	GenerateImage(context.Context, *model.GenerateQRImageRequest) (*model.GenerateQRImageResponse, error)
}

type qrCodeDomain struct {
	merchantDomain MerchantDomain
}

func NewQRCodeDomain(merchantDomain MerchantDomain) *qrCodeDomain {
	return &qrCodeDomain{merchantDomain: merchantDomain}
}

func (d *qrCodeDomain) ScanImage(
	ctx context.Context, req *model.ScanQRImageRequest,
) (*model.ScanQRImageResponse, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty image")
	}

	if len(req.Image) > maxQRImageDataLength {
		return nil, errorx.New(errorx.BadRequest, "Image too large")
	}

	payload, err := qrimage.Decode(req.Image, xcontext.Configs(ctx).QRImage.MaxDimension)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot decode qr image: %v", err)
		return nil, errorx.New(errorx.BadRequest, "No QR code found in the image")
	}

	resolved, err := d.merchantDomain.Resolve(ctx, &model.ResolveQRRequest{Payload: payload})
	if err != nil {
		return nil, err
	}

	return &model.ScanQRImageResponse{ResolveQRResponse: *resolved}, nil
}

func (d *qrCodeDomain) GenerateImage(
	ctx context.Context, req *model.GenerateQRImageRequest,
) (*model.GenerateQRImageResponse, error) {
	if strings.TrimSpace(req.Payload) == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty QR payload")
	}

	size := req.Size
	if size == 0 {
		size = xcontext.Configs(ctx).QRImage.DefaultSize
	}

	if size < minQRImageSize || size > maxQRImageSize {
		return nil, errorx.New(errorx.BadRequest,
			"Size must be between %d and %d pixels", minQRImageSize, maxQRImageSize)
	}

	dataURL, err := qrimage.Encode(req.Payload, size)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot encode qr image: %v", err)
		return nil, errorx.New(errorx.BadRequest, "Cannot encode the payload to a QR code")
	}

	return &model.GenerateQRImageResponse{DataURL: dataURL}, nil
}
