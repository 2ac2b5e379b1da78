package services

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

var ErrInvalidQRSize = fmt.Errorf("qr size must be between %d and %d", MinQRSize, MaxQRSize)

// QRPayload is what the vending machine scanner reads from a voucher.
func QRPayload(provider, code string) string {
	return fmt.Sprintf("ECOVEND:%s:%s", provider, code)
}

// RenderQR encodes content as a square PNG of the given pixel size.
func RenderQR(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	if size < MinQRSize || size > MaxQRSize {
		return nil, ErrInvalidQRSize
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
