package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"tradefabric/internal/config"
)

// Auth signs REST requests with HMAC-SHA256, the venue-agnostic half of
// most exchange auth schemes: it signs "timestamp + method + path [+
// body]" with the account's API secret. Key-derivation flows that bind to
// a specific wallet or chain are venue-specific and do not belong here;
// ApiKey/Secret are taken directly from config instead.
type Auth struct {
	apiKey string
	secret string
}

// NewAuth creates an Auth instance from config.
func NewAuth(cfg config.ExchangeConfig) *Auth {
	return &Auth{apiKey: cfg.ApiKey, secret: cfg.Secret}
}

// HasCredentials returns whether an API key and secret are configured.
func (a *Auth) HasCredentials() bool {
	return a.apiKey != "" && a.secret != ""
}

// Headers generates the signed headers for a request.
func (a *Auth) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	return map[string]string{
		"X-API-KEY":   a.apiKey,
		"X-SIGNATURE": sig,
		"X-TIMESTAMP": timestamp,
	}, nil
}

// buildHMAC computes the HMAC-SHA256 signature for a request.
// message = timestamp + method + requestPath [+ body]
func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		secretBytes = []byte(a.secret)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return sig, nil
}
