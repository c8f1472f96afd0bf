package store

import (
	"context"
	"errors"
	"fmt"

	"content-approval-api/exceptions"
	"content-approval-api/models"

	mysqlerr "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

// GormStore is the relational Store. Transitions rely on row locks and a
// conditional update, not on any in-process lock.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models lists every table owned by the store, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Role{},
		&models.User{},
		&models.UserRole{},
		&models.Post{},
		&models.ApprovalRequest{},
		&models.ApprovalAction{},
	}
}

func actionsNewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

func (s *GormStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exceptions.NotFound(resourcePost, id)
		}
		return nil, fmt.Errorf("failed to load post %s: %w", id, err)
	}
	return &post, nil
}

func (s *GormStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Roles.Role").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exceptions.NotFound(resourceUser, id)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Roles.Role").
		Where("email = ? AND deleted_at IS NULL", email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exceptions.NotFound(resourceUser, email)
		}
		return nil, fmt.Errorf("failed to load user by email: %w", err)
	}
	return &user, nil
}

// CreateRequest inserts a PENDING request. The unique index on post_id turns
// a racing second insert into a Conflict.
func (s *GormStore) CreateRequest(ctx context.Context, req *models.ApprovalRequest) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		if isDuplicateKey(err) {
			return exceptions.Conflict(resourceRequest, req.PostID,
				fmt.Sprintf("post %s already has an approval request", req.PostID))
		}
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	if req.Actions == nil {
		req.Actions = []models.ApprovalAction{}
	}
	return nil
}

func (s *GormStore) FindRequest(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := s.db.WithContext(ctx).
		Preload("Actions", actionsNewestFirst).
		Where("id = ?", id).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exceptions.NotFound(resourceRequest, id)
		}
		return nil, fmt.Errorf("failed to load approval request %s: %w", id, err)
	}
	return &req, nil
}

func (s *GormStore) FindRequestByPost(ctx context.Context, postID string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := s.db.WithContext(ctx).
		Preload("Actions", actionsNewestFirst).
		Where("post_id = ?", postID).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load approval request for post %s: %w", postID, err)
	}
	return &req, nil
}

func (s *GormStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.ApprovalRequest, error) {
	q := s.db.WithContext(ctx).
		Model(&models.ApprovalRequest{}).
		Preload("Actions", actionsNewestFirst)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RequesterID != "" {
		q = q.Where("requester_id = ?", filter.RequesterID)
	}

	dir := "ASC"
	if filter.Order == NewestFirst {
		dir = "DESC"
	}

	requests := []models.ApprovalRequest{}
	if err := q.Order("created_at " + dir).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	return requests, nil
}

// Transition locks the request row, evaluates the guard on it and applies
// the status change, the action log entry and the publish side effect in a
// single transaction. The returned row is read inside that transaction.
func (s *GormStore) Transition(ctx context.Context, t Transition) (*models.ApprovalRequest, error) {
	var updated models.ApprovalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ApprovalRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", t.RequestID).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return exceptions.NotFound(resourceRequest, t.RequestID)
			}
			return fmt.Errorf("failed to load approval request %s: %w", t.RequestID, err)
		}

		if t.Guard != nil {
			if err := t.Guard(&current); err != nil {
				return err
			}
		}

		res := tx.Model(&models.ApprovalRequest{}).
			Where("id = ? AND status = ?", current.ID, current.Status).
			Updates(map[string]interface{}{
				"status":     t.To,
				"updated_at": t.At,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update approval request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return exceptions.Conflict(resourceRequest, current.ID,
				fmt.Sprintf("approval request %s is no longer %s", current.ID, current.Status))
		}

		if t.Action != nil {
			t.Action.RequestID = current.ID
			if t.Action.CreatedAt.IsZero() {
				t.Action.CreatedAt = t.At
			}
			if err := tx.Omit(clause.Associations).Create(t.Action).Error; err != nil {
				return fmt.Errorf("failed to record approval action: %w", err)
			}
		}

		if t.PublishPost {
			res := tx.Model(&models.Post{}).
				Where("id = ?", current.PostID).
				Updates(map[string]interface{}{
					"status":       models.PostStatusPublished,
					"published":    true,
					"published_at": t.At,
					"updated_at":   t.At,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to publish post: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return exceptions.NotFound(resourcePost, current.PostID)
			}
		}

		if err := tx.Preload("Actions", actionsNewestFirst).
			Where("id = ?", current.ID).
			First(&updated).Error; err != nil {
			return fmt.Errorf("failed to reload approval request %s: %w", current.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AppendAction records a log entry for an existing request.
func (s *GormStore) AppendAction(ctx context.Context, action *models.ApprovalAction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ApprovalRequest{}).
			Where("id = ?", action.RequestID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check approval request: %w", err)
		}
		if count == 0 {
			return exceptions.NotFound(resourceRequest, action.RequestID)
		}

		if err := tx.Omit(clause.Associations).Create(action).Error; err != nil {
			return fmt.Errorf("failed to record approval action: %w", err)
		}
		return nil
	})
}

func (s *GormStore) LoadRelations(ctx context.Context, req *models.ApprovalRequest, rel Relations) error {
	if req == nil || !rel.Any() {
		return nil
	}
	db := s.db.WithContext(ctx)

	if rel.Post {
		post, err := s.FindPost(ctx, req.PostID)
		if err != nil {
			return err
		}
		req.Post = post
	}

	if rel.Requester {
		var user models.User
		if err := db.Where("id = ?", req.RequesterID).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load requester: %w", err)
			}
		} else {
			req.Requester = &user
		}
	}

	if rel.Approvers && len(req.Actions) > 0 {
		ids := approverIDs(req.Actions)
		var users []models.User
		if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return fmt.Errorf("failed to load approvers: %w", err)
		}
		attachApprovers(req.Actions, users)
	}
	return nil
}

func approverIDs(actions []models.ApprovalAction) []string {
	seen := make(map[string]bool, len(actions))
	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		if !seen[a.ApproverID] {
			seen[a.ApproverID] = true
			ids = append(ids, a.ApproverID)
		}
	}
	return ids
}

func attachApprovers(actions []models.ApprovalAction, users []models.User) {
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range actions {
		if u, ok := byID[actions[i].ApproverID]; ok {
			actions[i].Approver = u
		}
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqlerr.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
