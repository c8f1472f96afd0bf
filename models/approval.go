package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending   ApprovalStatus = "PENDING"
	ApprovalStatusApproved  ApprovalStatus = "APPROVED"
	ApprovalStatusRejected  ApprovalStatus = "REJECTED"
	ApprovalStatusCancelled ApprovalStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave the status.
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusCancelled:
		return true
	}
	return false
}

// ApprovalActionType identifies an entry of the action log.
type ApprovalActionType string

const (
	ApprovalActionApprove ApprovalActionType = "APPROVE"
	ApprovalActionReject  ApprovalActionType = "REJECT"
	ApprovalActionComment ApprovalActionType = "COMMENT"
)

// NoCommentPlaceholder is stored for comment actions submitted without text.
const NoCommentPlaceholder = "(no comment)"

// ApprovalRequest represents the approval_requests table. One row per post.
type ApprovalRequest struct {
	ID             string         `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	PostID         string         `gorm:"column:post_id;type:varchar(36);uniqueIndex;not null" json:"post_id"`
	RequesterID    string         `gorm:"column:requester_id;type:varchar(36);index;not null" json:"requester_id"`
	Status         ApprovalStatus `gorm:"column:status;type:varchar(16);index;not null;default:PENDING" json:"status"`
	RequestMessage *string        `gorm:"column:request_message;type:text" json:"request_message"`
	CreatedAt      time.Time      `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`

	// Actions is always loaded by the store, newest first.
	Actions []ApprovalAction `gorm:"foreignKey:RequestID" json:"actions"`

	// Loaded on demand only.
	Post      *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
}

// ApprovalAction represents the approval_actions table. Rows are append only.
type ApprovalAction struct {
	ID         string             `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	RequestID  string             `gorm:"column:request_id;type:varchar(36);index;not null" json:"request_id"`
	ApproverID string             `gorm:"column:approver_id;type:varchar(36);not null" json:"approver_id"`
	ActionType ApprovalActionType `gorm:"column:action_type;type:varchar(16);not null" json:"action_type"`
	Comment    *string            `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt  time.Time          `gorm:"column:created_at;index" json:"created_at"`

	Approver *User            `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Request  *ApprovalRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
}

// TableName overrides
func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

func (ApprovalAction) TableName() string {
	return "approval_actions"
}

func (r *ApprovalRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (a *ApprovalAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
