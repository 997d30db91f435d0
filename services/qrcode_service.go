package services

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"orchestrator-backend/core/workflow"
)

// QRCodeService renders claim links as QR codes so contributors can open
// their payment page from a phone.
type QRCodeService struct {
	baseURL string
	size    int
}

// NewQRCodeService creates a QR code service for links under baseURL.
func NewQRCodeService(baseURL string) *QRCodeService {
	return &QRCodeService{baseURL: strings.TrimRight(baseURL, "/"), size: 256}
}

// ClaimURL is the link to the payments of contributor at client.
func (s *QRCodeService) ClaimURL(client, contributor workflow.Address) string {
	return fmt.Sprintf("%s/api/payments/%s/%s", s.baseURL, url.PathEscape(client.String()), url.PathEscape(contributor.String()))
}

// GenerateQRCode renders content as a PNG.
func (s *QRCodeService) GenerateQRCode(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("empty qr content")
	}
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateClaimQRCode renders the claim link of contributor at client.
func (s *QRCodeService) GenerateClaimQRCode(client, contributor workflow.Address) ([]byte, error) {
	if client.IsZero() || contributor.IsZero() {
		return nil, workflow.ErrInvalidAddress
	}
	return s.GenerateQRCode(s.ClaimURL(client, contributor))
}
