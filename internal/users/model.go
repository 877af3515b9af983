package users

import (
	"fmt"
	"strings"
)

// Role is the access level assigned to a user record.
type Role string

const (
	// RoleUser may create recommendations and mutate its own.
	RoleUser Role = "user"
	// RoleAdmin may mutate any recommendation, curate the staff pick, and manage roles.
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role value.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("users: unknown role %q", value)
}

// User mirrors an identity-provider account. The provider subject id is the
// primary key, so at most one record exists per external subject.
type User struct {
	Subject          string `gorm:"column:subject;primaryKey;size:190;not null"`
	Email            string `gorm:"column:email;size:320;not null;index:idx_users_email"`
	DisplayName      string `gorm:"column:display_name;size:320"`
	Role             Role   `gorm:"column:role;size:16;not null;default:user"`
	IsArchived       bool   `gorm:"column:is_archived;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
