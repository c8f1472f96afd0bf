package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"content-approval-api/exceptions"
	"content-approval-api/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs STORE_DRIVER=memory
// and the tests; its mutex plays the role of the database's isolation.
type MemoryStore struct {
	mux      sync.RWMutex
	posts    map[string]*models.Post
	users    map[string]*models.User
	requests map[string]*memoryRequest
	byPost   map[string]string
	actions  map[string][]models.ApprovalAction
	seq      int64
}

type memoryRequest struct {
	request models.ApprovalRequest
	seq     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[string]*models.Post),
		users:    make(map[string]*models.User),
		requests: make(map[string]*memoryRequest),
		byPost:   make(map[string]string),
		actions:  make(map[string][]models.ApprovalAction),
	}
}

// PutUser inserts or replaces a user, assigning an id when empty.
func (s *MemoryStore) PutUser(user *models.User) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	clone.Roles = append([]models.UserRole(nil), user.Roles...)
	s.users[user.ID] = &clone
}

// PutPost inserts or replaces a post, assigning an id when empty.
func (s *MemoryStore) PutPost(post *models.Post) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	clone := *post
	s.posts[post.ID] = &clone
}

func (s *MemoryStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, exceptions.NotFound(resourcePost, id)
	}
	clone := *post
	return &clone, nil
}

func (s *MemoryStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, exceptions.NotFound(resourceUser, id)
	}
	return cloneUser(user), nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	for _, user := range s.users {
		if user.DeletedAt == nil && strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return nil, exceptions.NotFound(resourceUser, email)
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req *models.ApprovalRequest) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.byPost[req.PostID]; exists {
		return exceptions.Conflict(resourceRequest, req.PostID,
			fmt.Sprintf("post %s already has an approval request", req.PostID))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	req.Actions = []models.ApprovalAction{}

	s.seq++
	stored := *req
	stored.Post, stored.Requester, stored.Actions = nil, nil, nil
	s.requests[req.ID] = &memoryRequest{request: stored, seq: s.seq}
	s.byPost[req.PostID] = req.ID
	return nil
}

func (s *MemoryStore) FindRequest(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entry, ok := s.requests[id]
	if !ok {
		return nil, exceptions.NotFound(resourceRequest, id)
	}
	return s.snapshot(entry), nil
}

func (s *MemoryStore) FindRequestByPost(ctx context.Context, postID string) (*models.ApprovalRequest, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	id, ok := s.byPost[postID]
	if !ok {
		return nil, nil
	}
	return s.snapshot(s.requests[id]), nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.ApprovalRequest, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	entries := make([]*memoryRequest, 0, len(s.requests))
	for _, entry := range s.requests {
		if filter.Status != "" && entry.request.Status != filter.Status {
			continue
		}
		if filter.RequesterID != "" && entry.request.RequesterID != filter.RequesterID {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.request.CreatedAt.Equal(b.request.CreatedAt) {
			if filter.Order == NewestFirst {
				return a.request.CreatedAt.After(b.request.CreatedAt)
			}
			return a.request.CreatedAt.Before(b.request.CreatedAt)
		}
		if filter.Order == NewestFirst {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	out := make([]models.ApprovalRequest, 0, len(entries))
	for _, entry := range entries {
		out = append(out, *s.snapshot(entry))
	}
	return out, nil
}

func (s *MemoryStore) Transition(ctx context.Context, t Transition) (*models.ApprovalRequest, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	entry, ok := s.requests[t.RequestID]
	if !ok {
		return nil, exceptions.NotFound(resourceRequest, t.RequestID)
	}

	current := s.snapshot(entry)
	if t.Guard != nil {
		if err := t.Guard(current); err != nil {
			return nil, err
		}
	}

	var post *models.Post
	if t.PublishPost {
		if post, ok = s.posts[entry.request.PostID]; !ok {
			return nil, exceptions.NotFound(resourcePost, entry.request.PostID)
		}
	}

	// All checks passed; apply every effect.
	entry.request.Status = t.To
	entry.request.UpdatedAt = t.At
	if t.Action != nil {
		t.Action.RequestID = entry.request.ID
		s.appendLocked(t.Action, t.At)
	}
	if post != nil {
		post.MarkPublished(t.At)
	}
	return s.snapshot(entry), nil
}

func (s *MemoryStore) AppendAction(ctx context.Context, action *models.ApprovalAction) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.requests[action.RequestID]; !ok {
		return exceptions.NotFound(resourceRequest, action.RequestID)
	}
	s.appendLocked(action, time.Now())
	return nil
}

func (s *MemoryStore) appendLocked(action *models.ApprovalAction, at time.Time) {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = at
	}
	stored := *action
	stored.Approver, stored.Request = nil, nil
	s.actions[action.RequestID] = append(s.actions[action.RequestID], stored)
}

func (s *MemoryStore) LoadRelations(ctx context.Context, req *models.ApprovalRequest, rel Relations) error {
	if req == nil || !rel.Any() {
		return nil
	}
	s.mux.RLock()
	defer s.mux.RUnlock()

	if rel.Post {
		post, ok := s.posts[req.PostID]
		if !ok {
			return exceptions.NotFound(resourcePost, req.PostID)
		}
		clone := *post
		req.Post = &clone
	}
	if rel.Requester {
		if user, ok := s.users[req.RequesterID]; ok {
			req.Requester = cloneUser(user)
			req.Requester.Roles = nil
		}
	}
	if rel.Approvers {
		users := make([]models.User, 0)
		for _, id := range approverIDs(req.Actions) {
			if user, ok := s.users[id]; ok {
				clone := cloneUser(user)
				clone.Roles = nil
				users = append(users, *clone)
			}
		}
		attachApprovers(req.Actions, users)
	}
	return nil
}

// snapshot copies a stored request with its actions newest first. Caller
// holds the lock.
func (s *MemoryStore) snapshot(entry *memoryRequest) *models.ApprovalRequest {
	req := entry.request
	stored := s.actions[req.ID]
	actions := make([]models.ApprovalAction, len(stored))
	for i := range stored {
		actions[len(stored)-1-i] = stored[i]
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	req.Actions = actions
	return &req
}

func cloneUser(user *models.User) *models.User {
	clone := *user
	clone.Roles = append([]models.UserRole(nil), user.Roles...)
	return &clone
}
