package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Email     string     `gorm:"column:email;type:varchar(191);unique" json:"email"`
	Name      string     `gorm:"column:name" json:"name"`
	Password  string     `gorm:"column:password" json:"-"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	// Relations
	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles,omitempty"`
}

type Role struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Code      string    `gorm:"column:code;type:varchar(64);unique" json:"code"`
	Name      string    `gorm:"column:name" json:"name"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// UserRole links users to roles.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;column:user_id;type:varchar(36)" json:"user_id"`
	RoleID    string    `gorm:"primaryKey;column:role_id;type:varchar(36)" json:"role_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`

	Role Role `gorm:"foreignKey:RoleID" json:"role"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (Role) TableName() string {
	return "roles"
}

func (UserRole) TableName() string {
	return "user_roles"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasActiveRole reports whether the user holds any of the given role codes
// through an active role. Codes compare case-insensitively. Roles must be
// loaded.
func (u *User) HasActiveRole(codes ...string) bool {
	if u == nil {
		return false
	}
	for _, ur := range u.Roles {
		if !ur.Role.IsActive {
			continue
		}
		for _, code := range codes {
			if strings.EqualFold(strings.TrimSpace(code), ur.Role.Code) {
				return true
			}
		}
	}
	return false
}

// RoleCodes lists the codes of the active roles held by the user.
func (u *User) RoleCodes() []string {
	codes := make([]string, 0, len(u.Roles))
	for _, ur := range u.Roles {
		if ur.Role.IsActive {
			codes = append(codes, ur.Role.Code)
		}
	}
	return codes
}
