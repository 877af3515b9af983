// Package server exposes the HTTP surface: token exchange, the identity
// webhook, and the recommendation board API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hypeshelf/backend/internal/apperror"
	"github.com/hypeshelf/backend/internal/auth"
	"github.com/hypeshelf/backend/internal/recommendations"
	"github.com/hypeshelf/backend/internal/tmdb"
	"github.com/hypeshelf/backend/internal/users"
	"go.uber.org/zap"
)

const subjectContextKey = "hypeshelf_subject"

var (
	errMissingProviderVerifier = errors.New("provider verifier dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingWebhookVerifier  = errors.New("webhook verifier dependency required")
	errMissingUserService      = errors.New("user service dependency required")
	errMissingRecService       = errors.New("recommendation service dependency required")
	errMissingMovieCatalog     = errors.New("movie catalog dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// ProviderVerifier verifies identity-provider ID tokens.
type ProviderVerifier interface {
	Verify(ctx context.Context, token string) (auth.ProviderClaims, error)
}

// BackendTokenManager issues and validates the backend's own access tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.ProviderClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// WebhookVerifier authenticates identity-provider webhook deliveries.
type WebhookVerifier interface {
	VerifyRequest(header http.Header, body []byte) error
}

// MovieCatalog answers movie metadata lookups for the composer UI.
type MovieCatalog interface {
	SearchMovies(ctx context.Context, query string) ([]tmdb.Movie, error)
	ExternalLink(ctx context.Context, movieID int64) (string, error)
}

type Dependencies struct {
	ProviderVerifier ProviderVerifier
	TokenManager     BackendTokenManager
	WebhookVerifier  WebhookVerifier
	Users            *users.Service
	Recommendations  *recommendations.Service
	Movies           MovieCatalog
	Logger           *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.ProviderVerifier == nil {
		return nil, errMissingProviderVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.WebhookVerifier == nil {
		return nil, errMissingWebhookVerifier
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Recommendations == nil {
		return nil, errMissingRecService
	}
	if deps.Movies == nil {
		return nil, errMissingMovieCatalog
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier: deps.ProviderVerifier,
		tokens:   deps.TokenManager,
		webhooks: deps.WebhookVerifier,
		users:    deps.Users,
		recs:     deps.Recommendations,
		movies:   deps.Movies,
		logger:   logger,
	}

	router.POST("/auth/token", handler.handleTokenExchange)
	router.POST("/webhooks/identity", handler.handleIdentityWebhook)
	router.GET("/api/genres", handler.handleListGenres)
	router.GET("/api/recommendations/public", handler.handleListPublic)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/recommendations", handler.handleListRecommendations)
	protected.GET("/recommendations/:id", handler.handleGetRecommendation)
	protected.POST("/recommendations", handler.handleCreateRecommendation)
	protected.PUT("/recommendations/:id", handler.handleUpdateRecommendation)
	protected.DELETE("/recommendations/:id", handler.handleDeleteRecommendation)
	protected.POST("/recommendations/:id/staff-pick", handler.handleMarkStaffPick)
	protected.DELETE("/recommendations/:id/staff-pick", handler.handleUnmarkStaffPick)
	protected.GET("/users", handler.handleListUsers)
	protected.PUT("/users/:subject/role", handler.handleUpdateUserRole)
	protected.GET("/movies/search", handler.handleMovieSearch)
	protected.GET("/movies/:id/link", handler.handleMovieLink)

	return router, nil
}

type httpHandler struct {
	verifier ProviderVerifier
	tokens   BackendTokenManager
	webhooks WebhookVerifier
	users    *users.Service
	recs     *recommendations.Service
	movies   MovieCatalog
	logger   *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleTokenExchange(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("provider token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Best effort: a login that carries profile claims keeps the local
	// record fresh even when the webhook delivery lags.
	if claims.Email != "" {
		if _, err := h.users.Sync(c.Request.Context(), claims.Subject, claims.Email, claims.Name); err != nil {
			h.logger.Warn("user sync on login failed",
				zap.String("subject", claims.Subject),
				zap.Error(err))
		}
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	response := authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// expired tokens are routine client behavior, not a server concern
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Validation failures carry the offending field so the client can highlight
// it.
func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": appErr.Message})
		case errors.Is(err, apperror.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": appErr.Message})
		case errors.Is(err, apperror.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": appErr.Message})
		case errors.Is(err, apperror.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message, "field": appErr.Field})
		case errors.Is(err, apperror.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": appErr.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
