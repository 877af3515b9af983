package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hypeshelf/backend/internal/recommendations"
)

type recommendationPayload struct {
	Title     string   `json:"title"`
	Genres    []string `json:"genres"`
	Link      string   `json:"link,omitempty"`
	Blurb     string   `json:"blurb,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
	TMDBID    *int64   `json:"tmdb_id,omitempty"`
}

type ownerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type recommendationResponse struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Genres           []string     `json:"genres"`
	Link             string       `json:"link,omitempty"`
	Blurb            string       `json:"blurb,omitempty"`
	PosterURL        string       `json:"poster_url,omitempty"`
	TMDBID           *int64       `json:"tmdb_id,omitempty"`
	Owner            ownerPayload `json:"owner"`
	IsStaffPick      bool         `json:"is_staff_pick"`
	CreatedAtSeconds int64        `json:"created_at_s"`
	UpdatedAtSeconds int64        `json:"updated_at_s"`
}

type listResponsePayload struct {
	Recommendations []recommendationResponse `json:"recommendations"`
}

type pickResponsePayload struct {
	Previous *pickRefPayload `json:"previous,omitempty"`
}

type pickRefPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func toRecommendationResponse(item recommendations.Enriched) recommendationResponse {
	return recommendationResponse{
		ID:               item.ID,
		Title:            item.Title,
		Genres:           item.Genres,
		Link:             item.Link,
		Blurb:            item.Blurb,
		PosterURL:        item.PosterURL,
		TMDBID:           item.TMDBID,
		Owner:            ownerPayload{Name: item.Owner.Name, Email: item.Owner.Email},
		IsStaffPick:      item.IsStaffPick,
		CreatedAtSeconds: item.CreatedAtSeconds,
		UpdatedAtSeconds: item.UpdatedAtSeconds,
	}
}

func toListResponse(items []recommendations.Enriched) listResponsePayload {
	response := listResponsePayload{Recommendations: make([]recommendationResponse, 0, len(items))}
	for _, item := range items {
		response.Recommendations = append(response.Recommendations, toRecommendationResponse(item))
	}
	return response
}

func (p recommendationPayload) toInput() recommendations.Input {
	return recommendations.Input{
		Title:     p.Title,
		Genres:    p.Genres,
		Link:      p.Link,
		Blurb:     p.Blurb,
		PosterURL: p.PosterURL,
		TMDBID:    p.TMDBID,
	}
}

func (h *httpHandler) handleListGenres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": recommendations.Vocabulary()})
}

func (h *httpHandler) handleListPublic(c *gin.Context) {
	listed, err := h.recs.ListPublic(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListResponse(listed))
}

func (h *httpHandler) handleListRecommendations(c *gin.Context) {
	var genres []string
	if raw := strings.TrimSpace(c.Query("genres")); raw != "" {
		for _, genre := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(genre); trimmed != "" {
				genres = append(genres, trimmed)
			}
		}
	}
	mode, err := recommendations.ParseFilterMode(c.Query("filter_mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter_mode"})
		return
	}

	listed, err := h.recs.ListAll(c.Request.Context(), genres, mode)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListResponse(listed))
}

func (h *httpHandler) handleGetRecommendation(c *gin.Context) {
	item, err := h.recs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recommendation not found"})
		return
	}
	c.JSON(http.StatusOK, toRecommendationResponse(*item))
}

func (h *httpHandler) handleCreateRecommendation(c *gin.Context) {
	var payload recommendationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	id, err := h.recs.Create(c.Request.Context(), c.GetString(subjectContextKey), payload.toInput())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *httpHandler) handleUpdateRecommendation(c *gin.Context) {
	var payload recommendationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.recs.Update(c.Request.Context(), c.GetString(subjectContextKey), c.Param("id"), payload.toInput())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteRecommendation(c *gin.Context) {
	err := h.recs.Remove(c.Request.Context(), c.GetString(subjectContextKey), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkStaffPick(c *gin.Context) {
	previous, err := h.recs.MarkStaffPick(c.Request.Context(), c.GetString(subjectContextKey), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response := pickResponsePayload{}
	if previous != nil {
		response.Previous = &pickRefPayload{ID: previous.ID, Title: previous.Title}
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleUnmarkStaffPick(c *gin.Context) {
	err := h.recs.UnmarkStaffPick(c.Request.Context(), c.GetString(subjectContextKey), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
