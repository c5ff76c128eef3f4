package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ErrNoSigningSecret is returned when the signer is not configured;
// callers fall back to token-based indirect URLs.
var ErrNoSigningSecret = errors.New("no storage signing secret configured")

// Signer mints time-limited direct URLs for stored files.
type Signer interface {
	SignURL(storagePath string, ttl time.Duration) (string, error)
}

// HMACSigner produces URLs of the form
// {base}/storage/{bucket}/{path}?expires={unix}&signature={hex}
// verified by the download edge against the shared secret.
type HMACSigner struct {
	baseURL string
	bucket  string
	secret  []byte
}

// NewHMACSigner creates a signer for the given bucket. An empty secret
// yields a signer that always fails over to the indirect URL path.
func NewHMACSigner(baseURL, bucket, secret string) *HMACSigner {
	return &HMACSigner{baseURL: baseURL, bucket: bucket, secret: []byte(secret)}
}

// SignURL mints a direct URL that expires after ttl
func (s *HMACSigner) SignURL(storagePath string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSigningSecret
	}

	expires := time.Now().Add(ttl).Unix()
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s:%d", s.bucket, storagePath, expires)
	signature := hex.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", signature)

	return fmt.Sprintf("%s/storage/%s/%s?%s", s.baseURL, s.bucket, storagePath, q.Encode()), nil
}

// Verify checks a previously issued signature for a path
func (s *HMACSigner) Verify(storagePath string, expires int64, signature string) bool {
	if len(s.secret) == 0 || time.Now().Unix() > expires {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s/%s:%d", s.bucket, storagePath, expires)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
