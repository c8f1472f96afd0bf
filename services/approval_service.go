package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"content-approval-api/exceptions"
	"content-approval-api/metrics"
	"content-approval-api/models"
	"content-approval-api/store"
	"content-approval-api/utils"
)

// Actor is the authenticated caller as resolved by the identity layer.
type Actor struct {
	UserID     string
	Privileged bool
}

type CreateRequestInput struct {
	PostID         string
	RequestMessage *string
}

// ProcessInput carries approve, reject and comment calls.
type ProcessInput struct {
	RequestID string
	Comment   *string
}

// ApprovalService implements the post approval workflow:
//
//	PENDING -> APPROVED | REJECTED | CANCELLED
//
// Terminal states never change again. Every precondition is checked before
// any write, and approve/reject apply all of their effects in one store
// transition.
type ApprovalService struct {
	store     store.Store
	publisher Publisher
	now       func() time.Time
}

type Option func(s *ApprovalService)

// WithPublisher sets the event publisher. Defaults to NopPublisher.
func WithPublisher(p Publisher) Option {
	return func(s *ApprovalService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewApprovalService(st store.Store, opts ...Option) *ApprovalService {
	s := &ApprovalService{
		store:     st,
		publisher: NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create submits a post for approval on behalf of its author.
func (s *ApprovalService) Create(ctx context.Context, actor Actor, input CreateRequestInput) (*models.ApprovalRequest, error) {
	const op = "create"
	postID := strings.TrimSpace(input.PostID)
	if postID == "" {
		return nil, s.fail(op, exceptions.InvalidInput("post_id is required"))
	}

	post, err := s.store.FindPost(ctx, postID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if post.AuthorID != actor.UserID {
		return nil, s.fail(op, exceptions.Forbidden("only the author of the post can request approval"))
	}

	existing, err := s.store.FindRequestByPost(ctx, postID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if existing != nil {
		return nil, s.fail(op, exceptions.Conflict("approval request", existing.ID,
			fmt.Sprintf("post already has an approval request (status %s)", existing.Status)))
	}

	now := s.now()
	req := &models.ApprovalRequest{
		PostID:         postID,
		RequesterID:    actor.UserID,
		Status:         models.ApprovalStatusPending,
		RequestMessage: cleanText(input.RequestMessage),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, s.fail(op, err)
	}

	metrics.RecordTransition(op)
	s.emit(ctx, Event{Type: EventRequested, ActorID: actor.UserID, Request: req, OccurredAt: now})
	return req, nil
}

// Approve moves a PENDING request to APPROVED, logs an APPROVE action and
// publishes the post, all or nothing.
func (s *ApprovalService) Approve(ctx context.Context, actor Actor, input ProcessInput) (*models.ApprovalRequest, error) {
	return s.decide(ctx, "approve", actor, input, models.ApprovalStatusApproved, models.ApprovalActionApprove, EventApproved)
}

// Reject moves a PENDING request to REJECTED and logs a REJECT action. The
// post is left untouched.
func (s *ApprovalService) Reject(ctx context.Context, actor Actor, input ProcessInput) (*models.ApprovalRequest, error) {
	return s.decide(ctx, "reject", actor, input, models.ApprovalStatusRejected, models.ApprovalActionReject, EventRejected)
}

func (s *ApprovalService) decide(ctx context.Context, op string, actor Actor, input ProcessInput,
	to models.ApprovalStatus, actionType models.ApprovalActionType, eventType EventType) (*models.ApprovalRequest, error) {
	if err := requirePrivileged(actor); err != nil {
		return nil, s.fail(op, err)
	}
	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return nil, s.fail(op, exceptions.InvalidInput("request_id is required"))
	}

	now := s.now()
	action := &models.ApprovalAction{
		ApproverID: actor.UserID,
		ActionType: actionType,
		Comment:    cleanText(input.Comment),
		CreatedAt:  now,
	}

	updated, err := s.store.Transition(ctx, store.Transition{
		RequestID:   requestID,
		Guard:       requirePending(op),
		To:          to,
		Action:      action,
		PublishPost: to == models.ApprovalStatusApproved,
		At:          now,
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	metrics.RecordTransition(op)
	s.emit(ctx, Event{Type: eventType, ActorID: actor.UserID, Request: updated, Action: action, OccurredAt: now})
	return updated, nil
}

// Cancel withdraws a PENDING request. Only the original requester may cancel,
// and no action is logged.
func (s *ApprovalService) Cancel(ctx context.Context, actor Actor, requestID string) (*models.ApprovalRequest, error) {
	const op = "cancel"
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, s.fail(op, exceptions.InvalidInput("request_id is required"))
	}

	now := s.now()
	pending := requirePending(op)
	updated, err := s.store.Transition(ctx, store.Transition{
		RequestID: requestID,
		Guard: func(current *models.ApprovalRequest) error {
			if current.RequesterID != actor.UserID {
				return exceptions.Forbidden("only the requester can cancel an approval request")
			}
			return pending(current)
		},
		To: models.ApprovalStatusCancelled,
		At: now,
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	metrics.RecordTransition(op)
	s.emit(ctx, Event{Type: EventCancelled, ActorID: actor.UserID, Request: updated, OccurredAt: now})
	return updated, nil
}

// AddComment appends a COMMENT action in any state without touching the
// status. The returned action carries its request and post.
func (s *ApprovalService) AddComment(ctx context.Context, actor Actor, input ProcessInput) (*models.ApprovalAction, error) {
	const op = "comment"
	if err := requirePrivileged(actor); err != nil {
		return nil, s.fail(op, err)
	}
	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return nil, s.fail(op, exceptions.InvalidInput("request_id is required"))
	}

	req, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		return nil, s.fail(op, err)
	}

	comment := cleanText(input.Comment)
	if comment == nil {
		placeholder := models.NoCommentPlaceholder
		comment = &placeholder
	}

	now := s.now()
	action := &models.ApprovalAction{
		RequestID:  req.ID,
		ApproverID: actor.UserID,
		ActionType: models.ApprovalActionComment,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := s.store.AppendAction(ctx, action); err != nil {
		return nil, s.fail(op, err)
	}

	if err := s.store.LoadRelations(ctx, req, store.Relations{Post: true, Requester: true}); err != nil {
		log.Printf("approval comment %s: failed to load context: %v", action.ID, err)
	}
	req.Actions = append([]models.ApprovalAction{*action}, req.Actions...)
	action.Request = req

	metrics.RecordTransition(op)
	s.emit(ctx, Event{Type: EventCommented, ActorID: actor.UserID, Request: req, Action: action, OccurredAt: now})
	return action, nil
}

func (s *ApprovalService) Get(ctx context.Context, requestID string) (*models.ApprovalRequest, error) {
	req, err := s.store.FindRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return nil, s.fail("get", err)
	}
	return req, nil
}

// GetByPost returns the request of a post, or nil when it has none. A
// missing post is NotFound.
func (s *ApprovalService) GetByPost(ctx context.Context, postID string) (*models.ApprovalRequest, error) {
	postID = strings.TrimSpace(postID)
	if _, err := s.store.FindPost(ctx, postID); err != nil {
		return nil, s.fail("get_by_post", err)
	}
	req, err := s.store.FindRequestByPost(ctx, postID)
	if err != nil {
		return nil, s.fail("get_by_post", err)
	}
	return req, nil
}

// ListPending is the review queue, oldest request first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]models.ApprovalRequest, error) {
	return s.store.ListRequests(ctx, store.RequestFilter{
		Status: models.ApprovalStatusPending,
		Order:  store.OldestFirst,
	})
}

// ListByRequester returns every request of a user, newest first.
func (s *ApprovalService) ListByRequester(ctx context.Context, requesterID string) ([]models.ApprovalRequest, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, s.fail("list_mine", exceptions.InvalidInput("requester_id is required"))
	}
	return s.store.ListRequests(ctx, store.RequestFilter{
		RequesterID: requesterID,
		Order:       store.NewestFirst,
	})
}

// WithRelations eagerly loads the requested associations of req.
func (s *ApprovalService) WithRelations(ctx context.Context, req *models.ApprovalRequest, rel store.Relations) error {
	return s.store.LoadRelations(ctx, req, rel)
}

func (s *ApprovalService) emit(ctx context.Context, event Event) {
	if err := s.publisher.Publish(persistentContext(ctx), event); err != nil {
		log.Printf("approval event %s publish failed: %v", event.Type, err)
	}
}

func (s *ApprovalService) fail(op string, err error) error {
	metrics.RecordFailure(op, exceptions.KindName(err))
	return err
}

func requirePrivileged(actor Actor) error {
	if !actor.Privileged {
		return exceptions.Forbidden("approver privileges required")
	}
	return nil
}

func requirePending(op string) func(*models.ApprovalRequest) error {
	return func(current *models.ApprovalRequest) error {
		if current.Status != models.ApprovalStatusPending {
			return exceptions.Conflict("approval request", current.ID,
				fmt.Sprintf("cannot %s: approval request status is %s", op, current.Status))
		}
		return nil
	}
}

func cleanText(v *string) *string {
	if v == nil {
		return nil
	}
	cleaned := utils.SanitizeInput(*v)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
