package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus mirrors the editorial state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusArchived  PostStatus = "ARCHIVED"
	PostStatusTrash     PostStatus = "TRASH"
)

// Post is the content item submitted for approval. The approval flow only
// reads AuthorID and writes the publish fields.
type Post struct {
	ID          string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	AuthorID    string     `gorm:"column:author_id;type:varchar(36);index;not null" json:"author_id"`
	Title       string     `gorm:"column:title" json:"title"`
	Status      PostStatus `gorm:"column:status;type:varchar(16);not null;default:DRAFT" json:"status"`
	Published   bool       `gorm:"column:published;not null;default:false" json:"published"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// MarkPublished applies the publish side effect of an approval.
func (p *Post) MarkPublished(at time.Time) {
	p.Status = PostStatusPublished
	p.Published = true
	p.PublishedAt = &at
	p.UpdatedAt = at
}
