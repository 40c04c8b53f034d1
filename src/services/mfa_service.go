package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"

	"github.com/pquerna/otp/totp"
)

const mfaQRCodeSize = 200

// MFASetup is what an admin needs to enrol an authenticator app.
type MFASetup struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"provisioningUrl"`
	QRCodePNG       string `json:"qrCodePng"` // base64
}

type MFAService struct {
	issuer string
}

func NewMFAService(issuer string) *MFAService {
	if issuer == "" {
		issuer = "Hermes"
	}
	return &MFAService{issuer: issuer}
}

// GenerateSetup creates a new TOTP secret for the account.
func (s *MFAService) GenerateSetup(accountName string) (*MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(mfaQRCodeSize, mfaQRCodeSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &MFASetup{
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
		QRCodePNG:       base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// ValidateCode checks a 6-digit code; authenticator apps often insert a space.
func (s *MFAService) ValidateCode(secret, code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
