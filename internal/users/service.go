// Package users syncs identity-provider accounts into local user records and
// manages role assignment.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hypeshelf/backend/internal/apperror"
	"github.com/hypeshelf/backend/internal/authz"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	// AdminEmails is the allow-list that grants the admin role during sync.
	AdminEmails []string
	Logger      *zap.Logger
}

// Service upserts users from identity-provider lifecycle events and answers
// role queries for the authorization guard.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	adminEmails := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		normalized := normalizeEmail(email)
		if normalized == "" {
			continue
		}
		adminEmails[normalized] = struct{}{}
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		adminEmails: adminEmails,
		logger:      logger,
	}, nil
}

// Sync upserts a user record from a provider user.created or user.updated
// event. The role is re-derived from the admin allow-list on every sync so a
// changed list takes effect without manual intervention.
func (s *Service) Sync(ctx context.Context, subject, email, name string) (*User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, apperror.Validation("subject", "subject id is required")
	}

	role := RoleUser
	if _, ok := s.adminEmails[normalizeEmail(email)]; ok {
		role = RoleAdmin
	}
	now := s.clock().UTC().Unix()

	var user User
	err := s.db.WithContext(ctx).Where("subject = ?", subject).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			Subject:          subject,
			Email:            strings.TrimSpace(email),
			DisplayName:      strings.TrimSpace(name),
			Role:             role,
			CreatedAtSeconds: now,
			UpdatedAtSeconds: now,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("users: create: %w", err)
		}
		s.logger.Info("user created",
			zap.String("subject", subject),
			zap.String("role", string(role)))
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup: %w", err)
	}

	updates := map[string]interface{}{
		"email":        strings.TrimSpace(email),
		"display_name": strings.TrimSpace(name),
		"role":         role,
		"updated_at_s": now,
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("subject = ?", subject).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("users: update: %w", err)
	}
	user.Email = updates["email"].(string)
	user.DisplayName = updates["display_name"].(string)
	user.Role = role
	user.UpdatedAtSeconds = now
	return &user, nil
}

// Archive soft-deletes a user on a provider user.deleted event. The record is
// preserved; archiving a missing subject is a no-op.
func (s *Service) Archive(ctx context.Context, subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return apperror.Validation("subject", "subject id is required")
	}
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("subject = ?", subject).
		Updates(map[string]interface{}{
			"is_archived":  true,
			"updated_at_s": s.clock().UTC().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("users: archive: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info("user archived", zap.String("subject", subject))
	}
	return nil
}

// BySubject returns the user record for a provider subject id, or nil when no
// record exists.
func (s *Service) BySubject(ctx context.Context, subject string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("subject = ?", subject).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup: %w", err)
	}
	return &user, nil
}

// List returns all non-archived users. Admin only.
func (s *Service) List(ctx context.Context, callerSubject string) ([]User, error) {
	caller, err := s.CallerFor(ctx, callerSubject)
	if err != nil {
		return nil, err
	}
	switch authz.Authorize(caller, authz.OperationListUsers, "") {
	case authz.DeniedUnauthenticated:
		return nil, apperror.Unauthenticated()
	case authz.DeniedUnauthorized:
		return nil, apperror.Unauthorized("admin access required")
	}

	var all []User
	if err := s.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("created_at_s ASC").
		Find(&all).Error; err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return all, nil
}

// UpdateRole changes a user's role. Admin only.
func (s *Service) UpdateRole(ctx context.Context, callerSubject, subject string, role Role) error {
	caller, err := s.CallerFor(ctx, callerSubject)
	if err != nil {
		return err
	}
	switch authz.Authorize(caller, authz.OperationUpdateUserRole, "") {
	case authz.DeniedUnauthenticated:
		return apperror.Unauthenticated()
	case authz.DeniedUnauthorized:
		return apperror.Unauthorized("admin access required")
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("subject = ?", subject).
		Updates(map[string]interface{}{
			"role":         role,
			"updated_at_s": s.clock().UTC().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("users: update role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("user", subject)
	}
	s.logger.Info("user role updated",
		zap.String("subject", subject),
		zap.String("role", string(role)))
	return nil
}

// CallerFor resolves the guard's view of a caller identity. Archived users
// are treated as not found so a deleted account loses access immediately.
func (s *Service) CallerFor(ctx context.Context, subject string) (authz.Caller, error) {
	caller := authz.Caller{Subject: strings.TrimSpace(subject)}
	if caller.Subject == "" {
		return caller, nil
	}
	user, err := s.BySubject(ctx, caller.Subject)
	if err != nil {
		return authz.Caller{}, err
	}
	if user != nil && !user.IsArchived {
		caller.Found = true
		caller.Admin = user.Role == RoleAdmin
	}
	return caller, nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
