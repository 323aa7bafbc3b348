// Package qrimage reads and renders QR code images.
package qrimage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/nfnt/resize"
	qrgen "github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

var ErrEmptyImage = errors.New("empty image")

// Decode reads the QR content of a base64 encoded image. Both plain base64
// and data URLs are accepted. Images whose longest side exceeds
// maxDimension are downscaled first; zero disables downscaling.
func Decode(data string, maxDimension uint) (string, error) {
	if idx := strings.Index(data, ","); idx != -1 {
		data = data[idx+1:]
	}

	data = strings.TrimSpace(data)
	if data == "" {
		return "", ErrEmptyImage
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	return DecodeImage(downscale(img, maxDimension))
}

func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}

	return result.GetText(), nil
}

// Encode renders content as a PNG data URL of size x size pixels.
func Encode(content string, size int) (string, error) {
	png, err := qrgen.Encode(content, qrgen.Medium, size)
	if err != nil {
		return "", err
	}

	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

func downscale(img image.Image, maxDimension uint) image.Image {
	if maxDimension == 0 {
		return img
	}

	b := img.Bounds()
	if uint(b.Dx()) <= maxDimension && uint(b.Dy()) <= maxDimension {
		return img
	}

	if b.Dx() >= b.Dy() {
		return resize.Resize(maxDimension, 0, img, resize.Bilinear)
	}

	return resize.Resize(0, maxDimension, img, resize.Bilinear)
}
