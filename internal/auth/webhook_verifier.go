package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	webhookSecretPrefix     = "whsec_"
	defaultWebhookTolerance = 5 * time.Minute
	webhookIDHeader         = "webhook-id"
	webhookTimestampHeader  = "webhook-timestamp"
	webhookSignatureHeader  = "webhook-signature"
	webhookSignatureVersion = "v1"
)

var (
	errMissingWebhookSecret   = errors.New("webhook signing secret must be provided")
	ErrInvalidWebhookConfig   = errors.New("auth: invalid webhook verifier config")
	ErrMissingWebhookHeaders  = errors.New("auth: webhook headers missing")
	ErrWebhookTimestampSkew   = errors.New("auth: webhook timestamp outside tolerance")
	ErrWebhookSignatureNoSign = errors.New("auth: webhook signature mismatch")
)

// WebhookVerifierConfig configures verification of identity-provider webhook
// deliveries.
type WebhookVerifierConfig struct {
	// SigningSecret is the provider's endpoint secret, optionally carrying
	// the conventional "whsec_" prefix around its base64 payload.
	SigningSecret string
	// Tolerance bounds the accepted clock skew on the delivery timestamp.
	Tolerance time.Duration
	Clock     func() time.Time
}

// WebhookVerifier authenticates webhook deliveries signed with the
// HMAC-SHA256 scheme used by identity-provider webhook services: the
// signature covers "<id>.<timestamp>.<body>" and arrives base64-encoded in a
// version-prefixed header that may list several candidate signatures.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	clock     func() time.Time
}

// NewWebhookVerifier constructs a verifier with validated configuration.
func NewWebhookVerifier(cfg WebhookVerifierConfig) (*WebhookVerifier, error) {
	encoded := strings.TrimSpace(cfg.SigningSecret)
	encoded = strings.TrimPrefix(encoded, webhookSecretPrefix)
	if encoded == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookConfig, errMissingWebhookSecret)
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not valid base64: %v", ErrInvalidWebhookConfig, err)
	}

	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &WebhookVerifier{
		secret:    secret,
		tolerance: tolerance,
		clock:     clock,
	}, nil
}

// VerifyRequest authenticates a webhook delivery from its headers and raw
// body. It returns nil only when the timestamp is within tolerance and one of
// the presented signatures matches.
func (v *WebhookVerifier) VerifyRequest(header http.Header, body []byte) error {
	deliveryID := strings.TrimSpace(header.Get(webhookIDHeader))
	timestampRaw := strings.TrimSpace(header.Get(webhookTimestampHeader))
	signatureRaw := strings.TrimSpace(header.Get(webhookSignatureHeader))
	if deliveryID == "" || timestampRaw == "" || signatureRaw == "" {
		return ErrMissingWebhookHeaders
	}

	timestamp, err := strconv.ParseInt(timestampRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrMissingWebhookHeaders, timestampRaw)
	}
	skew := v.clock().UTC().Sub(time.Unix(timestamp, 0))
	if skew > v.tolerance || skew < -v.tolerance {
		return ErrWebhookTimestampSkew
	}

	expected := v.sign(deliveryID, timestampRaw, body)
	for _, candidate := range strings.Fields(signatureRaw) {
		version, encoded, found := strings.Cut(candidate, ",")
		if !found || version != webhookSignatureVersion {
			continue
		}
		presented, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(presented, expected) {
			return nil
		}
	}
	return ErrWebhookSignatureNoSign
}

func (v *WebhookVerifier) sign(deliveryID, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", deliveryID, timestamp)
	mac.Write(body)
	return mac.Sum(nil)
}
