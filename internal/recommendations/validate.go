package recommendations

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/hypeshelf/backend/internal/apperror"
)

// Field constraints shared by create and update.
const (
	TitleMaxLength = 100
	BlurbMaxLength = 500
	LinkMaxLength  = 2000
	GenresMinCount = 1
)

// validateInput checks field constraints before any write. Each violation
// names the offending field; the first failure aborts the operation so
// nothing partially commits.
func validateInput(input Input) error {
	if strings.TrimSpace(input.Title) == "" {
		return apperror.Validation("title", "title is required")
	}
	if utf8.RuneCountInString(input.Title) > TitleMaxLength {
		return apperror.Validation("title", fmt.Sprintf("title must be %d characters or less", TitleMaxLength))
	}
	if len(input.Genres) < GenresMinCount {
		return apperror.Validation("genres", fmt.Sprintf("at least %d genre is required", GenresMinCount))
	}
	for _, genre := range input.Genres {
		if strings.TrimSpace(genre) == "" {
			return apperror.Validation("genres", "genres must not be blank")
		}
	}
	if utf8.RuneCountInString(input.Blurb) > BlurbMaxLength {
		return apperror.Validation("blurb", fmt.Sprintf("blurb must be %d characters or less", BlurbMaxLength))
	}
	if input.Link != "" {
		if utf8.RuneCountInString(input.Link) > LinkMaxLength {
			return apperror.Validation("link", fmt.Sprintf("link must be %d characters or less", LinkMaxLength))
		}
		parsed, err := url.Parse(input.Link)
		if err != nil || parsed.Scheme == "" {
			return apperror.Validation("link", "link must be a valid URL")
		}
	}
	return nil
}
