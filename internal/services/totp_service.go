package services

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 8
	// backupCodeAlphabet avoids ambiguous characters (0/O, 1/I/L).
	backupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// SetupMaterial is the ephemeral output of a 2FA setup request. Nothing in
// it is persisted until the user verifies one code.
type SetupMaterial struct {
	Secret          string
	ProvisioningURL string
	QRPNGBase64     string
	BackupCodes     []string
}

// VerifyResult reports which verification path matched.
type VerifyResult struct {
	Valid          bool
	UsedBackupCode string // bcrypt hash of the consumed backup code, empty for TOTP matches
}

// TOTPService is the pure one-time-password engine: secret generation,
// provisioning payloads, time-windowed code checks and single-use backup
// codes. It holds no storage; callers persist what they need.
type TOTPService struct {
	issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{issuer: issuer}
}

// Setup generates a fresh secret, its otpauth provisioning URL, a QR code
// rendering of that URL and a new set of single-use backup codes.
func (s *TOTPService) Setup(email string) (*SetupMaterial, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("render totp qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode totp qr: %w", err)
	}

	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}

	return &SetupMaterial{
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
		QRPNGBase64:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		BackupCodes:     codes,
	}, nil
}

// HashBackupCodes bcrypt-hashes plaintext backup codes for storage.
func (s *TOTPService) HashBackupCodes(codes []string) ([]string, error) {
	hashed := make([]string, len(codes))
	for i, code := range codes {
		h, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash backup code: %w", err)
		}
		hashed[i] = string(h)
	}
	return hashed, nil
}

// Verify accepts either a 6-digit TOTP code within the standard ±1 step
// tolerance window, or an exact match against one stored backup code. A code
// matching neither path is simply invalid; the result does not disclose
// which check failed.
func (s *TOTPService) Verify(code, secret string, hashedBackupCodes []string) VerifyResult {
	code = strings.ToUpper(strings.TrimSpace(code))

	if isTOTPShaped(code) {
		ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err == nil && ok {
			return VerifyResult{Valid: true}
		}
	}

	for _, hash := range hashedBackupCodes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil {
			return VerifyResult{Valid: true, UsedBackupCode: hash}
		}
	}

	return VerifyResult{}
}

// RemoveUsedBackupCode returns the list with the consumed entry removed so
// each backup code works exactly once.
func (s *TOTPService) RemoveUsedBackupCode(hashedBackupCodes []string, usedHash string) []string {
	pruned := make([]string, 0, len(hashedBackupCodes))
	for _, hash := range hashedBackupCodes {
		if hash != usedHash {
			pruned = append(pruned, hash)
		}
	}
	return pruned
}

func isTOTPShaped(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func generateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		buf := make([]byte, backupCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		b := make([]byte, backupCodeLength)
		for j, v := range buf {
			b[j] = backupCodeAlphabet[int(v)%len(backupCodeAlphabet)]
		}
		codes[i] = string(b)
	}
	return codes, nil
}
