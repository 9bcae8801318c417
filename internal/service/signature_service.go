package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HMACSignatureService signs and checks webhook bodies with HMAC-SHA256.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Providers that send uppercase hex or a
// "sha256=" prefix are accepted; an empty secret never verifies.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	if secretKey == "" {
		return false
	}
	signature = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	return hmac.Equal([]byte(s.Sign(secretKey, payload)), []byte(signature))
}
