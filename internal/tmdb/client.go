// Package tmdb is a thin client for The Movie Database API, used to suggest
// titles, posters, and genre tags while composing a recommendation.
//
// API documentation: https://developer.themoviedb.org/docs
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://api.themoviedb.org/3"
	imageBaseURL       = "https://image.tmdb.org/t/p/w500"
	searchResultCap    = 5
	defaultHTTPTimeout = 10 * time.Second
)

// genreNames maps TMDb genre ids onto the board's genre vocabulary. Ids
// without a close equivalent collapse into broader tags.
var genreNames = map[int64]string{
	28:    "Action",
	12:    "Action", // Adventure
	16:    "Animation",
	35:    "Comedy",
	80:    "Thriller", // Crime
	99:    "Documentary",
	18:    "Drama",
	10751: "Other", // Family
	14:    "Fantasy",
	36:    "Drama", // History
	27:    "Horror",
	10402: "Other", // Music
	9648:  "Mystery",
	10749: "Romance",
	878:   "Sci-Fi",
	10770: "Other", // TV Movie
	53:    "Thriller",
	10752: "Action", // War
	37:    "Action", // Western
}

// Movie is one search result, reduced to the fields the board uses.
type Movie struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	PosterURL   string   `json:"posterUrl,omitempty"`
	Genres      []string `json:"genres"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
}

// ClientConfig describes the TMDb client settings.
type ClientConfig struct {
	// APIKey is the TMDb v3 API key. When empty the client degrades: searches
	// return no results and link lookups return nothing.
	APIKey string
	// BaseURL overrides the API origin, used by tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the TMDb v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a TMDb client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	GenreIDs    []int64 `json:"genre_ids"`
	ReleaseDate string  `json:"release_date"`
}

// SearchMovies returns up to five matches for a title query. A blank query or
// a missing API key yields an empty result rather than an error.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	if !c.Configured() {
		c.logger.Warn("movie search skipped, api key not configured")
		return []Movie{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return []Movie{}, nil
	}

	endpoint := fmt.Sprintf(
		"%s/search/movie?api_key=%s&query=%s&language=en-US&page=1&include_adult=false",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(query),
	)
	var payload searchResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("tmdb: search: %w", err)
	}

	results := payload.Results
	if len(results) > searchResultCap {
		results = results[:searchResultCap]
	}
	movies := make([]Movie, 0, len(results))
	for _, result := range results {
		movies = append(movies, Movie{
			ID:          result.ID,
			Title:       result.Title,
			Overview:    result.Overview,
			PosterURL:   PosterURL(result.PosterPath),
			Genres:      MapGenres(result.GenreIDs),
			ReleaseDate: result.ReleaseDate,
		})
	}
	return movies, nil
}

type externalIDsResponse struct {
	IMDBID string `json:"imdb_id"`
}

// ExternalLink returns the IMDb page URL for a movie, or an empty string when
// the movie has no IMDb id or the client is not configured.
func (c *Client) ExternalLink(ctx context.Context, movieID int64) (string, error) {
	if !c.Configured() {
		return "", nil
	}

	endpoint := fmt.Sprintf(
		"%s/movie/%d/external_ids?api_key=%s",
		c.baseURL, movieID, url.QueryEscape(c.apiKey),
	)
	var payload externalIDsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", fmt.Errorf("tmdb: external ids: %w", err)
	}
	if payload.IMDBID == "" {
		return "", nil
	}
	return fmt.Sprintf("https://www.imdb.com/title/%s/", payload.IMDBID), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PosterURL expands a TMDb poster path into a full w500 image URL. A nil or
// empty path yields an empty string.
func PosterURL(posterPath *string) string {
	if posterPath == nil || *posterPath == "" {
		return ""
	}
	return imageBaseURL + *posterPath
}

// MapGenres converts TMDb genre ids into the board's genre names, dropping
// unknown ids and deduplicating while preserving first-seen order.
func MapGenres(genreIDs []int64) []string {
	seen := make(map[string]struct{}, len(genreIDs))
	genres := make([]string, 0, len(genreIDs))
	for _, id := range genreIDs {
		name, ok := genreNames[id]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		genres = append(genres, name)
	}
	return genres
}
