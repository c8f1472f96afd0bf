package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApprovalStatusIsTerminal(t *testing.T) {
	cases := map[ApprovalStatus]bool{
		ApprovalStatusPending:   false,
		ApprovalStatusApproved:  true,
		ApprovalStatusRejected:  true,
		ApprovalStatusCancelled: true,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.IsTerminal(), string(status))
	}
	assert.False(t, ApprovalStatus("ARCHIVED").IsTerminal())
}

func TestUserHasActiveRole(t *testing.T) {
	user := &User{
		ID: "u1",
		Roles: []UserRole{
			{UserID: "u1", Role: Role{Code: "author", IsActive: true}},
			{UserID: "u1", Role: Role{Code: "admin", IsActive: false}},
		},
	}

	assert.True(t, user.HasActiveRole("AUTHOR"))
	assert.False(t, user.HasActiveRole("admin"), "inactive role must not grant privilege")
	assert.False(t, user.HasActiveRole())
	assert.Equal(t, []string{"author"}, user.RoleCodes())

	var nobody *User
	assert.False(t, nobody.HasActiveRole("admin"))
}

func TestPostMarkPublished(t *testing.T) {
	post := &Post{Status: PostStatusDraft}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	post.MarkPublished(at)

	assert.Equal(t, PostStatusPublished, post.Status)
	assert.True(t, post.Published)
	if assert.NotNil(t, post.PublishedAt) {
		assert.Equal(t, at, *post.PublishedAt)
	}
}
