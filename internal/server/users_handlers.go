package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypeshelf/backend/internal/users"
)

type userResponse struct {
	Subject          string `json:"subject"`
	Email            string `json:"email,omitempty"`
	DisplayName      string `json:"display_name,omitempty"`
	Role             string `json:"role"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type roleUpdatePayload struct {
	Role string `json:"role"`
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	listed, err := h.users.List(c.Request.Context(), c.GetString(subjectContextKey))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := make([]userResponse, 0, len(listed))
	for _, user := range listed {
		response = append(response, userResponse{
			Subject:          user.Subject,
			Email:            user.Email,
			DisplayName:      user.DisplayName,
			Role:             string(user.Role),
			CreatedAtSeconds: user.CreatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": response})
}

func (h *httpHandler) handleUpdateUserRole(c *gin.Context) {
	var payload roleUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	role, err := users.ParseRole(payload.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "field": "role"})
		return
	}

	err = h.users.UpdateRole(c.Request.Context(), c.GetString(subjectContextKey), c.Param("subject"), role)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
