package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"content-approval-api/exceptions"
	"content-approval-api/models"
	"content-approval-api/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *store.MemoryStore
	service   *ApprovalService
	publisher *recordingPublisher
	author    Actor
	admin     Actor
	stranger  Actor
	post      *models.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutUser(&models.User{ID: "author", Email: "author@example.org", Name: "Ann Author"})
	st.PutUser(&models.User{ID: "admin", Email: "admin@example.org", Name: "Max Admin"})
	st.PutUser(&models.User{ID: "stranger", Email: "stranger@example.org"})
	post := &models.Post{ID: "post-1", AuthorID: "author", Title: "First post"}
	st.PutPost(post)

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	pub := &recordingPublisher{}
	return &fixture{
		store:     st,
		service:   NewApprovalService(st, WithPublisher(pub), WithClock(now)),
		publisher: pub,
		author:    Actor{UserID: "author"},
		admin:     Actor{UserID: "admin", Privileged: true},
		stranger:  Actor{UserID: "stranger"},
		post:      post,
	}
}

func strPtr(s string) *string { return &s }

func (f *fixture) create(t *testing.T) *models.ApprovalRequest {
	t.Helper()
	req, err := f.service.Create(context.Background(), f.author, CreateRequestInput{PostID: f.post.ID, RequestMessage: strPtr("please review")})
	require.NoError(t, err)
	return req
}

// transitionCount reads approval_transitions_total{action} from the default registry.
func transitionCount(t *testing.T, action string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "approval_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "action" && label.GetValue() == action {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreateRequestByAuthorIsPending(t *testing.T) {
	f := newFixture(t)
	createdBefore := transitionCount(t, "create")

	req := f.create(t)

	assert.Equal(t, createdBefore+1, transitionCount(t, "create"))

	assert.Equal(t, models.ApprovalStatusPending, req.Status)
	assert.Equal(t, "author", req.RequesterID)
	assert.Equal(t, f.post.ID, req.PostID)
	require.NotNil(t, req.RequestMessage)
	assert.Equal(t, "please review", *req.RequestMessage)
	assert.Empty(t, req.Actions)
	assert.Equal(t, []EventType{EventRequested}, f.publisher.types())
}

func TestCreateRequestPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.author, CreateRequestInput{PostID: "missing"})
	assert.True(t, errors.Is(err, exceptions.ErrNotFound))

	_, err = f.service.Create(ctx, f.stranger, CreateRequestInput{PostID: f.post.ID})
	assert.True(t, errors.Is(err, exceptions.ErrForbidden))
	existing, err := f.store.FindRequestByPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Nil(t, existing, "forbidden create must not write a row")

	_, err = f.service.Create(ctx, f.author, CreateRequestInput{PostID: "  "})
	assert.True(t, errors.Is(err, exceptions.ErrInvalidInput))
}

func TestCreateRequestConflictsWithAnyExistingRow(t *testing.T) {
	for _, terminal := range []string{"pending", "rejected", "cancelled"} {
		t.Run(terminal, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			req := f.create(t)

			switch terminal {
			case "rejected":
				_, err := f.service.Reject(ctx, f.admin, ProcessInput{RequestID: req.ID})
				require.NoError(t, err)
			case "cancelled":
				_, err := f.service.Cancel(ctx, f.author, req.ID)
				require.NoError(t, err)
			}

			_, err := f.service.Create(ctx, f.author, CreateRequestInput{PostID: f.post.ID})
			require.Error(t, err)
			assert.True(t, errors.Is(err, exceptions.ErrConflict))
		})
	}
}

func TestApprovePublishesPostAndLogsAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	updated, err := f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID, Comment: strPtr("looks good")})
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusApproved, updated.Status)
	require.Len(t, updated.Actions, 1)
	assert.Equal(t, models.ApprovalActionApprove, updated.Actions[0].ActionType)
	assert.Equal(t, "admin", updated.Actions[0].ApproverID)
	require.NotNil(t, updated.Actions[0].Comment)
	assert.Equal(t, "looks good", *updated.Actions[0].Comment)

	post, err := f.store.FindPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, post.Published)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.NotNil(t, post.PublishedAt)
	assert.Equal(t, []EventType{EventRequested, EventApproved}, f.publisher.types())
}

func TestApproveOrRejectOnTerminalRequestIsConflictWithoutEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, err := f.service.Reject(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exceptions.ErrConflict))
	assert.Contains(t, err.Error(), "REJECTED")

	_, err = f.service.Reject(ctx, f.admin, ProcessInput{RequestID: req.ID})
	assert.True(t, errors.Is(err, exceptions.ErrConflict))

	after, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, after.Status)
	assert.Len(t, after.Actions, 1)

	post, err := f.store.FindPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.False(t, post.Published)
	assert.Nil(t, post.PublishedAt)
}

func TestRejectLeavesPostUnpublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	updated, err := f.service.Reject(ctx, f.admin, ProcessInput{RequestID: req.ID, Comment: strPtr("needs sources")})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, updated.Status)
	require.Len(t, updated.Actions, 1)
	assert.Equal(t, models.ApprovalActionReject, updated.Actions[0].ActionType)

	post, err := f.store.FindPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.False(t, post.Published)
	assert.Equal(t, models.PostStatusDraft, post.Status)
}

func TestDecisionsRequirePrivilegeAndExistingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, err := f.service.Approve(ctx, f.author, ProcessInput{RequestID: req.ID})
	assert.True(t, errors.Is(err, exceptions.ErrForbidden))
	_, err = f.service.AddComment(ctx, f.stranger, ProcessInput{RequestID: req.ID})
	assert.True(t, errors.Is(err, exceptions.ErrForbidden))

	_, err = f.service.Approve(ctx, f.admin, ProcessInput{RequestID: "missing"})
	assert.True(t, errors.Is(err, exceptions.ErrNotFound))
	_, err = f.service.AddComment(ctx, f.admin, ProcessInput{RequestID: "missing"})
	assert.True(t, errors.Is(err, exceptions.ErrNotFound))

	after, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, after.Status)
	assert.Empty(t, after.Actions)
}

func TestCancelOnlyByRequesterWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	_, err := f.service.Cancel(ctx, f.admin, req.ID)
	assert.True(t, errors.Is(err, exceptions.ErrForbidden))

	updated, err := f.service.Cancel(ctx, f.author, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusCancelled, updated.Status)
	assert.Empty(t, updated.Actions, "cancellation is not logged")

	_, err = f.service.Cancel(ctx, f.author, req.ID)
	assert.True(t, errors.Is(err, exceptions.ErrConflict))

	_, err = f.service.Cancel(ctx, f.author, "missing")
	assert.True(t, errors.Is(err, exceptions.ErrNotFound))
}

func TestAddCommentInAnyStateKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	action, err := f.service.AddComment(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalActionComment, action.ActionType)
	require.NotNil(t, action.Comment)
	assert.Equal(t, models.NoCommentPlaceholder, *action.Comment)
	require.NotNil(t, action.Request)
	require.NotNil(t, action.Request.Post)
	assert.Equal(t, "First post", action.Request.Post.Title)

	_, err = f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.NoError(t, err)

	action, err = f.service.AddComment(ctx, f.admin, ProcessInput{RequestID: req.ID, Comment: strPtr("  post-hoc note ")})
	require.NoError(t, err)
	assert.Equal(t, "post-hoc note", *action.Comment)

	after, err := f.service.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, after.Status)
	require.Len(t, after.Actions, 3)
	assert.Equal(t, models.ApprovalActionComment, after.Actions[0].ActionType, "newest first")
	assert.Equal(t, models.ApprovalActionApprove, after.Actions[1].ActionType)
	assert.Equal(t, models.ApprovalActionComment, after.Actions[2].ActionType)
}

func TestListPendingIsFIFOAndListByRequesterNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, id := range []string{"post-a", "post-b", "post-c"} {
		f.store.PutPost(&models.Post{ID: id, AuthorID: "author"})
		req, err := f.service.Create(ctx, f.author, CreateRequestInput{PostID: id})
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}
	_, err := f.service.Approve(ctx, f.admin, ProcessInput{RequestID: ids[1]})
	require.NoError(t, err)

	pending, err := f.service.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)
	for _, r := range pending {
		assert.Equal(t, models.ApprovalStatusPending, r.Status)
	}

	mine, err := f.service.ListByRequester(ctx, "author")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{mine[0].ID, mine[1].ID, mine[2].ID})

	none, err := f.service.ListByRequester(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.service.GetByPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Nil(t, req)

	_, err = f.service.GetByPost(ctx, "missing")
	assert.True(t, errors.Is(err, exceptions.ErrNotFound))

	created := f.create(t)
	req, err = f.service.GetByPost(ctx, f.post.ID)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, created.ID, req.ID)

	require.NoError(t, f.service.WithRelations(ctx, req, store.Relations{Post: true, Requester: true}))
	assert.Equal(t, "First post", req.Post.Title)
	assert.Equal(t, "Ann Author", req.Requester.Name)
}

func TestConcurrentApproveYieldsSingleTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, exceptions.ErrConflict), "loser must observe conflict: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	after, err := f.store.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, after.Status)
	assert.Len(t, after.Actions, 1)
}

func TestPublisherFailureDoesNotUndoTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t)
	f.publisher.err = errors.New("broker down")

	updated, err := f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, updated.Status)
}

func TestEndToEndApprovalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.service.Create(ctx, f.author, CreateRequestInput{PostID: f.post.ID, RequestMessage: strPtr("please review")})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, req.Status)
	assert.Len(t, req.Actions, 0)

	approved, err := f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID, Comment: strPtr("looks good")})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, approved.Status)
	require.Len(t, approved.Actions, 1)
	assert.Equal(t, models.ApprovalActionApprove, approved.Actions[0].ActionType)
	assert.Equal(t, "looks good", *approved.Actions[0].Comment)

	post, err := f.store.FindPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, post.Published)
	assert.NotNil(t, post.PublishedAt)

	_, err = f.service.Approve(ctx, f.admin, ProcessInput{RequestID: req.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exceptions.ErrConflict))
	assert.Contains(t, err.Error(), "status is APPROVED")
}
