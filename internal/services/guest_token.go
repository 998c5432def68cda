package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cart-service/internal/models"
)

// GuestTokenService generates and validates stateless HMAC-SHA256 tokens that
// prove a client was issued a given guest cart id. Token lifetime matches the
// guest cart TTL so a token never outlives its cart.
type GuestTokenService struct {
	secret []byte
}

// NewGuestTokenService creates a new GuestTokenService using the GUEST_CART_TOKEN_SECRET env var.
func NewGuestTokenService() *GuestTokenService {
	secret := os.Getenv("GUEST_CART_TOKEN_SECRET")
	if secret == "" {
		secret = "default-guest-cart-token-secret-change-me"
		fmt.Println("WARNING: GUEST_CART_TOKEN_SECRET not set, using insecure default")
	}
	return &GuestTokenService{secret: []byte(secret)}
}

// GenerateToken produces a base64url-encoded token: expiry_unix|HMAC-SHA256(cartID|expiry, secret)
func (s *GuestTokenService) GenerateToken(cartID string) string {
	expiry := time.Now().Add(models.GuestCartTTL).Unix()
	expiryStr := strconv.FormatInt(expiry, 10)

	mac := s.computeHMAC(cartID, expiryStr)

	payload := expiryStr + "|" + base64.RawURLEncoding.EncodeToString(mac)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ValidateToken decodes the token, checks expiry, recomputes HMAC, and performs constant-time comparison.
func (s *GuestTokenService) ValidateToken(token, cartID string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("invalid token")
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid token")
	}

	expiryStr := parts[0]
	providedMAC, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("invalid token")
	}

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token")
	}
	if time.Now().Unix() > expiry {
		return fmt.Errorf("token expired")
	}

	expectedMAC := s.computeHMAC(cartID, expiryStr)
	if subtle.ConstantTimeCompare(providedMAC, expectedMAC) != 1 {
		return fmt.Errorf("invalid token")
	}

	return nil
}

func (s *GuestTokenService) computeHMAC(cartID, expiry string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(cartID + "|" + expiry))
	return h.Sum(nil)
}
