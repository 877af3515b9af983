package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleMovieSearch proxies title lookups to the movie catalog. Catalog
// failures degrade to an empty result so the composer keeps working without
// suggestions.
func (h *httpHandler) handleMovieSearch(c *gin.Context) {
	movies, err := h.movies.SearchMovies(c.Request.Context(), c.Query("query"))
	if err != nil {
		h.logger.Warn("movie search failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"movies": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movies": movies})
}

func (h *httpHandler) handleMovieLink(c *gin.Context) {
	movieID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_movie_id"})
		return
	}

	link, err := h.movies.ExternalLink(c.Request.Context(), movieID)
	if err != nil {
		h.logger.Warn("external link lookup failed", zap.Int64("movie_id", movieID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"link": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link})
}
