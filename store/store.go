// Package store persists approval requests, their action log and the
// content items they publish.
//
// Fetch contract: every ApprovalRequest returned by a Store carries its
// Actions, newest first. Post, Requester and action Approvers are never
// loaded implicitly; callers ask for them through LoadRelations.
package store

import (
	"context"
	"time"

	"content-approval-api/models"
)

const (
	resourcePost    = "post"
	resourceUser    = "user"
	resourceRequest = "approval request"
)

// SortOrder orders request listings by creation time.
type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	Status      models.ApprovalStatus
	RequesterID string
	Order       SortOrder
}

// Relations selects the associations LoadRelations fetches.
type Relations struct {
	Post      bool
	Requester bool
	Approvers bool
}

// Any reports whether at least one relation is requested.
func (r Relations) Any() bool {
	return r.Post || r.Requester || r.Approvers
}

// Transition is a guarded status change applied as one unit of work.
//
// Guard runs against the row as read inside the unit of work; returning an
// error aborts without writes. The status update only applies while the row
// still holds the status the guard saw.
type Transition struct {
	RequestID   string
	Guard       func(current *models.ApprovalRequest) error
	To          models.ApprovalStatus
	Action      *models.ApprovalAction
	PublishPost bool
	At          time.Time
}

type Store interface {
	FindPost(ctx context.Context, id string) (*models.Post, error)
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateRequest(ctx context.Context, req *models.ApprovalRequest) error
	FindRequest(ctx context.Context, id string) (*models.ApprovalRequest, error)
	// FindRequestByPost returns nil, nil when the post has no request.
	FindRequestByPost(ctx context.Context, postID string) (*models.ApprovalRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.ApprovalRequest, error)

	Transition(ctx context.Context, t Transition) (*models.ApprovalRequest, error)
	AppendAction(ctx context.Context, action *models.ApprovalAction) error

	LoadRelations(ctx context.Context, req *models.ApprovalRequest, rel Relations) error
}
