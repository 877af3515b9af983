// Package recommendations implements the recommendation lifecycle: CRUD with
// soft delete, genre filtering, enriched listings, and the single staff pick
// invariant.
package recommendations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hypeshelf/backend/internal/apperror"
	"github.com/hypeshelf/backend/internal/authz"
	"github.com/hypeshelf/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const publicListingLimit = 6

// ServiceConfig describes the dependencies of the recommendation service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Directory  Directory
	Logger     *zap.Logger
}

// Service owns all reads and writes of recommendation records. Every
// mutating operation is authorized through the guard and executes as a
// single store transaction; the staff pick swap relies on row locking inside
// that transaction rather than any in-process lock.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	ids       IDProvider
	directory Directory
	logger    *zap.Logger
}

// NewService constructs the recommendation service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("recommendations: database connection required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("recommendations: user directory required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        cfg.Database,
		clock:     clock,
		ids:       ids,
		directory: cfg.Directory,
		logger:    logger,
	}, nil
}

// Create validates and inserts a new recommendation owned by the caller.
// The record starts unpicked and unarchived with matching timestamps.
func (s *Service) Create(ctx context.Context, callerSubject string, input Input) (string, error) {
	caller, err := s.callerFor(ctx, callerSubject)
	if err != nil {
		return "", err
	}
	if err := decisionError(authz.Authorize(caller, authz.OperationCreateRecommendation, ""), "account not recognized"); err != nil {
		return "", err
	}
	if err := validateInput(input); err != nil {
		return "", err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("recommendations: id generation: %w", err)
	}
	now := s.clock().UTC().Unix()
	record := Recommendation{
		ID:               id,
		Title:            input.Title,
		Genres:           datatypes.NewJSONSlice(input.Genres),
		Link:             input.Link,
		Blurb:            input.Blurb,
		PosterURL:        input.PosterURL,
		TMDBID:           input.TMDBID,
		OwnerSubject:     caller.Subject,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Error("recommendation insert failed", zap.String("id", id), zap.Error(err))
		return "", fmt.Errorf("recommendations: create: %w", err)
	}
	s.logger.Info("recommendation created",
		zap.String("id", id),
		zap.String("owner", caller.Subject))
	return id, nil
}

// Update replaces the mutable fields of a recommendation. Owner or admin
// only. Archived targets are rejected with a conflict; the pick flag,
// archive flag, owner, and creation time are never touched.
func (s *Service) Update(ctx context.Context, callerSubject, id string, input Input) error {
	caller, err := s.callerFor(ctx, callerSubject)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := lockByID(tx, id)
		if err != nil {
			return err
		}
		if err := decisionError(
			authz.Authorize(caller, authz.OperationEditRecommendation, target.OwnerSubject),
			"you can only edit your own recommendations",
		); err != nil {
			return err
		}
		if target.IsArchived {
			return apperror.Conflict("cannot edit an archived recommendation")
		}
		if err := validateInput(input); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":        input.Title,
			"genres":       datatypes.NewJSONSlice(input.Genres),
			"link":         input.Link,
			"blurb":        input.Blurb,
			"poster_url":   input.PosterURL,
			"tmdb_id":      input.TMDBID,
			"updated_at_s": s.clock().UTC().Unix(),
		}
		if err := tx.Model(&Recommendation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("recommendations: update: %w", err)
		}
		return nil
	})
}

// Remove soft-deletes a recommendation. Owner or admin only. Archiving also
// clears the staff pick flag in the same row patch so no reachable state is
// both archived and picked.
func (s *Service) Remove(ctx context.Context, callerSubject, id string) error {
	caller, err := s.callerFor(ctx, callerSubject)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := lockByID(tx, id)
		if err != nil {
			return err
		}
		if err := decisionError(
			authz.Authorize(caller, authz.OperationDeleteRecommendation, target.OwnerSubject),
			"you can only delete your own recommendations",
		); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"is_archived":   true,
			"is_staff_pick": false,
			"updated_at_s":  s.clock().UTC().Unix(),
		}
		if err := tx.Model(&Recommendation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("recommendations: archive: %w", err)
		}
		s.logger.Info("recommendation archived", zap.String("id", id))
		return nil
	})
}

// MarkStaffPick designates the single featured recommendation. Admin only.
// The previous pick (if any) is cleared and the target set inside one
// transaction, so readers never observe two picks or a missing pick mid-swap.
// Returns the replaced pick so callers can surface a notice; the swap is
// final once committed.
func (s *Service) MarkStaffPick(ctx context.Context, callerSubject, id string) (*PickRef, error) {
	caller, err := s.callerFor(ctx, callerSubject)
	if err != nil {
		return nil, err
	}
	if err := decisionError(authz.Authorize(caller, authz.OperationMarkStaffPick, ""), "admin access required"); err != nil {
		return nil, err
	}

	var previous *PickRef
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := lockByID(tx, id)
		if err != nil {
			return err
		}
		if target.IsArchived {
			return apperror.Conflict("cannot mark an archived recommendation as staff pick")
		}

		var current Recommendation
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_staff_pick = ? AND id <> ?", true, id).
			Take(&current).Error
		now := s.clock().UTC().Unix()
		if err == nil {
			previous = &PickRef{ID: current.ID, Title: current.Title}
			if err := tx.Model(&Recommendation{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
				"is_staff_pick": false,
				"updated_at_s":  now,
			}).Error; err != nil {
				return fmt.Errorf("recommendations: clear previous pick: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recommendations: locate current pick: %w", err)
		}

		if err := tx.Model(&Recommendation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_staff_pick": true,
			"updated_at_s":  now,
		}).Error; err != nil {
			return fmt.Errorf("recommendations: set pick: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	fields := []zap.Field{zap.String("id", id)}
	if previous != nil {
		fields = append(fields, zap.String("replaced", previous.ID))
	}
	s.logger.Info("staff pick marked", fields...)
	return previous, nil
}

// UnmarkStaffPick clears the pick flag on the target. Admin only. Unmarking
// an already-unpicked record is an idempotent success; the flag write (and
// its updatedAt bump) is applied unconditionally.
func (s *Service) UnmarkStaffPick(ctx context.Context, callerSubject, id string) error {
	caller, err := s.callerFor(ctx, callerSubject)
	if err != nil {
		return err
	}
	if err := decisionError(authz.Authorize(caller, authz.OperationUnmarkStaffPick, ""), "admin access required"); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockByID(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&Recommendation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_staff_pick": false,
			"updated_at_s":  s.clock().UTC().Unix(),
		}).Error; err != nil {
			return fmt.Errorf("recommendations: unmark pick: %w", err)
		}
		return nil
	})
}

// ArchiveOwnedBy soft-deletes every active recommendation of one owner,
// clearing pick flags. Used by the identity webhook when a provider account
// is deleted.
func (s *Service) ArchiveOwnedBy(ctx context.Context, ownerSubject string) error {
	result := s.db.WithContext(ctx).Model(&Recommendation{}).
		Where("owner_subject = ? AND is_archived = ?", ownerSubject, false).
		Updates(map[string]interface{}{
			"is_archived":   true,
			"is_staff_pick": false,
			"updated_at_s":  s.clock().UTC().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("recommendations: archive owned: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info("owner recommendations archived",
			zap.String("owner", ownerSubject),
			zap.Int64("count", result.RowsAffected))
	}
	return nil
}

// ListPublic returns the six most recent non-archived recommendations
// (always including the staff pick when one exists), enriched and ordered.
func (s *Service) ListPublic(ctx context.Context) ([]Enriched, error) {
	var records []Recommendation
	if err := s.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("is_staff_pick DESC, created_at_s DESC").
		Limit(publicListingLimit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("recommendations: list public: %w", err)
	}
	listed := s.enrich(ctx, records)
	sortListing(listed)
	return listed, nil
}

// ListAll returns all non-archived recommendations, optionally filtered by
// genres, enriched and ordered.
func (s *Service) ListAll(ctx context.Context, genres []string, mode FilterMode) ([]Enriched, error) {
	var records []Recommendation
	if err := s.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("created_at_s DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("recommendations: list all: %w", err)
	}
	records = FilterByGenres(records, genres, mode)
	listed := s.enrich(ctx, records)
	sortListing(listed)
	return listed, nil
}

// GetByID returns a single enriched recommendation, or nil when the id is
// unknown or the record is archived.
func (s *Service) GetByID(ctx context.Context, id string) (*Enriched, error) {
	var record Recommendation
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recommendations: get: %w", err)
	}
	if record.IsArchived {
		return nil, nil
	}
	enriched := s.enrich(ctx, []Recommendation{record})
	return &enriched[0], nil
}

// StaffPickCount reports how many non-archived records are currently picked.
// Exposed for invariant checks in tests and operational tooling.
func (s *Service) StaffPickCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Recommendation{}).
		Where("is_staff_pick = ? AND is_archived = ?", true, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("recommendations: pick count: %w", err)
	}
	return count, nil
}

func (s *Service) callerFor(ctx context.Context, subject string) (authz.Caller, error) {
	caller := authz.Caller{Subject: subject}
	if subject == "" {
		return caller, nil
	}
	user, err := s.directory.BySubject(ctx, subject)
	if err != nil {
		return authz.Caller{}, err
	}
	if user != nil && !user.IsArchived {
		caller.Found = true
		caller.Admin = user.Role == users.RoleAdmin
	}
	return caller, nil
}

func decisionError(decision authz.Decision, unauthorizedMessage string) error {
	switch decision {
	case authz.DeniedUnauthenticated:
		return apperror.Unauthenticated()
	case authz.DeniedUnauthorized:
		return apperror.Unauthorized(unauthorizedMessage)
	}
	return nil
}

// lockByID loads a recommendation under a row lock for the enclosing
// transaction, translating a miss into the NotFound taxonomy.
func lockByID(tx *gorm.DB, id string) (Recommendation, error) {
	var record Recommendation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Recommendation{}, apperror.NotFound("recommendation", id)
	}
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendations: lookup: %w", err)
	}
	return record, nil
}
