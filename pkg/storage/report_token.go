package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadClaim is what a verified download token grants: access to one
// report job's stored file until the expiry passes.
type DownloadClaim struct {
	JobID     string
	FilePath  string
	ExpiresAt time.Time
}

// ReportTokenSigner mints and verifies the HMAC tokens behind report
// download links. A token pins both the job id and the file path it was
// issued for, so a leaked link can never be replayed against another job's
// file.
type ReportTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewReportTokenSigner builds a signer. A non-positive TTL falls back to a
// day, matching how long generated files are kept around.
func NewReportTokenSigner(secret string, ttl time.Duration) *ReportTokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportTokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a download token for a finished report file.
func (s *ReportTokenSigner) Issue(jobID, filePath string) (string, time.Time, error) {
	if jobID == "" || filePath == "" {
		return "", time.Time{}, fmt.Errorf("download token needs a job id and a file path")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("download token secret is not configured")
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	claim := strings.Join([]string{
		encodeField(jobID),
		encodeField(filePath),
		strconv.FormatInt(expiresAt.Unix(), 10),
	}, ".")
	return claim + "." + s.sign(claim), expiresAt, nil
}

// Verify checks a token's signature and expiry and returns its claim.
func (s *ReportTokenSigner) Verify(token string) (*DownloadClaim, error) {
	cut := strings.LastIndexByte(token, '.')
	if cut < 0 {
		return nil, fmt.Errorf("malformed download token")
	}
	claim, signature := token[:cut], token[cut+1:]
	if !hmac.Equal([]byte(s.sign(claim)), []byte(signature)) {
		return nil, fmt.Errorf("download token signature mismatch")
	}

	parts := strings.Split(claim, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed download token")
	}
	jobID, err := decodeField(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed download token: %w", err)
	}
	filePath, err := decodeField(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed download token: %w", err)
	}
	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed download token: %w", err)
	}

	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return nil, fmt.Errorf("download token expired")
	}
	return &DownloadClaim{JobID: jobID, FilePath: filePath, ExpiresAt: expiresAt}, nil
}

func (s *ReportTokenSigner) sign(claim string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(claim))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeField(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func decodeField(raw string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
