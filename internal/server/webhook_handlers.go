package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	webhookEventUserCreated = "user.created"
	webhookEventUserUpdated = "user.updated"
	webhookEventUserDeleted = "user.deleted"
)

type webhookEventPayload struct {
	Type string          `json:"type"`
	Data webhookUserData `json:"data"`
}

type webhookUserData struct {
	ID                    string                `json:"id"`
	EmailAddresses        []webhookEmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string                `json:"primary_email_address_id"`
	FirstName             string                `json:"first_name"`
	LastName              string                `json:"last_name"`
}

type webhookEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// primaryEmail resolves the address flagged as primary, falling back to the
// first listed one.
func (d webhookUserData) primaryEmail() string {
	for _, address := range d.EmailAddresses {
		if address.ID == d.PrimaryEmailAddressID {
			return address.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (d webhookUserData) displayName() string {
	parts := make([]string, 0, 2)
	for _, part := range []string{d.FirstName, d.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// handleIdentityWebhook ingests provider user lifecycle events. Deliveries
// failing signature verification are rejected; unknown event types are
// acknowledged so the provider stops retrying them.
func (h *httpHandler) handleIdentityWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.webhooks.VerifyRequest(c.Request.Header, body); err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var event webhookEventPayload
	if err := json.Unmarshal(body, &event); err != nil || event.Data.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case webhookEventUserCreated, webhookEventUserUpdated:
		if _, err := h.users.Sync(ctx, event.Data.ID, event.Data.primaryEmail(), event.Data.displayName()); err != nil {
			h.writeServiceError(c, err)
			return
		}
	case webhookEventUserDeleted:
		if err := h.users.Archive(ctx, event.Data.ID); err != nil {
			h.writeServiceError(c, err)
			return
		}
		if err := h.recs.ArchiveOwnedBy(ctx, event.Data.ID); err != nil {
			h.writeServiceError(c, err)
			return
		}
	default:
		h.logger.Info("unhandled webhook event type", zap.String("type", event.Type))
	}

	c.Status(http.StatusOK)
}
