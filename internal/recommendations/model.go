package recommendations

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// SystemSubject is the reserved owner for seed data curated by the team.
const SystemSubject = "system"

// Recommendation models a persisted movie recommendation. The composite
// listing index mirrors the read path: non-archived records, staff pick
// first, newest first.
type Recommendation struct {
	ID               string                      `gorm:"column:id;primaryKey;size:190;not null"`
	Title            string                      `gorm:"column:title;size:100;not null"`
	Genres           datatypes.JSONSlice[string] `gorm:"column:genres;not null"`
	Link             string                      `gorm:"column:link;size:2000"`
	Blurb            string                      `gorm:"column:blurb;size:500"`
	PosterURL        string                      `gorm:"column:poster_url;size:2000"`
	TMDBID           *int64                      `gorm:"column:tmdb_id"`
	OwnerSubject     string                      `gorm:"column:owner_subject;size:190;not null;index:idx_recommendations_owner"`
	IsStaffPick      bool                        `gorm:"column:is_staff_pick;not null;default:false;index:idx_recommendations_listing,priority:2"`
	IsArchived       bool                        `gorm:"column:is_archived;not null;default:false;index:idx_recommendations_listing,priority:1"`
	CreatedAtSeconds int64                       `gorm:"column:created_at_s;not null;index:idx_recommendations_listing,priority:3"`
	UpdatedAtSeconds int64                       `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Recommendation) TableName() string {
	return "recommendations"
}

// Input carries the caller-supplied fields for create and update. Optional
// fields are empty when absent; update replaces all mutable fields wholesale.
type Input struct {
	Title     string
	Genres    []string
	Link      string
	Blurb     string
	PosterURL string
	TMDBID    *int64
}

// PickRef identifies a staff pick for the "replaced X" notice returned by
// MarkStaffPick. Informational only; the swap has no undo.
type PickRef struct {
	ID    string
	Title string
}

// FilterMode is the predicate combinator for genre filtering.
type FilterMode string

const (
	// FilterModeOR matches records sharing at least one requested genre.
	FilterModeOR FilterMode = "OR"
	// FilterModeAND matches records carrying every requested genre.
	FilterModeAND FilterMode = "AND"
)

// ParseFilterMode validates a raw filter mode. Empty input selects OR.
func ParseFilterMode(value string) (FilterMode, error) {
	switch FilterMode(strings.ToUpper(strings.TrimSpace(value))) {
	case "":
		return FilterModeOR, nil
	case FilterModeOR:
		return FilterModeOR, nil
	case FilterModeAND:
		return FilterModeAND, nil
	}
	return "", fmt.Errorf("recommendations: unknown filter mode %q", value)
}
