package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const requestColumns = "id, family_id, type, description, status, admin_comment, created_at, updated_at"

// RequestRepository handles database operations for aid requests
type RequestRepository struct {
	store
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *RequestRepository {
	return &RequestRepository{store: newStore(db, policy, log, "RequestRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *RequestRepository) WithTx(tx *database.Tx) *RequestRepository {
	return &RequestRepository{store: r.store.withTx(tx)}
}

func scanRequest(row scanner) (*models.Request, error) {
	req := &models.Request{}
	err := row.Scan(
		&req.ID,
		&req.FamilyID,
		&req.Type,
		&req.Description,
		&req.Status,
		&req.AdminComment,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequestByID retrieves a request by ID
func (r *RequestRepository) GetRequestByID(ctx context.Context, id int64) (*models.Request, error) {
	req, err := getOne(ctx, r.store, scanRequest, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListRequests retrieves every request, newest first
func (r *RequestRepository) ListRequests(ctx context.Context) ([]models.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests ORDER BY created_at DESC, id DESC"
	reqs, err := getAll(ctx, r.store, scanRequest, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return reqs, nil
}

// ListRequestsByFamilyID retrieves the requests of one family, newest first
func (r *RequestRepository) ListRequestsByFamilyID(ctx context.Context, familyID int64) ([]models.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE family_id = ? ORDER BY created_at DESC, id DESC"
	reqs, err := getAll(ctx, r.store, scanRequest, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by family: %w", err)
	}
	return reqs, nil
}

// CreateRequest inserts a new request. An empty status becomes pending.
func (r *RequestRepository) CreateRequest(ctx context.Context, req models.Request) (*models.Request, error) {
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("invalid request status %q", req.Status)
	}
	req.CreatedAt = now()
	req.UpdatedAt = req.CreatedAt

	query := `
		INSERT INTO requests (family_id, type, description, status, admin_comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.store, query,
		req.FamilyID, req.Type, req.Description, req.Status, req.AdminComment, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ID = id
	return &req, nil
}

// UpdateRequest applies a partial update and refreshes updated_at, even when
// the patch is empty. It returns nil when the request does not exist.
func (r *RequestRepository) UpdateRequest(ctx context.Context, id int64, patch models.RequestPatch) (*models.Request, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("invalid request status %q", *patch.Status)
	}
	var a assignments
	setIf(&a, "type", patch.Type)
	setIf(&a, "description", patch.Description)
	setIf(&a, "status", patch.Status)
	setIf(&a, "admin_comment", patch.AdminComment)
	a.set("updated_at", now())
	if err := a.update(ctx, r.store, "requests", id); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}
	return r.GetRequestByID(ctx, id)
}

// SetRequestStatus records a review decision along with the reviewer's comment
func (r *RequestRepository) SetRequestStatus(ctx context.Context, id int64, status models.RequestStatus, comment string) (*models.Request, error) {
	return r.UpdateRequest(ctx, id, models.RequestPatch{Status: &status, AdminComment: &comment})
}

// DeleteRequest removes a request
func (r *RequestRepository) DeleteRequest(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete request: %w", err)
	}
	return n > 0, nil
}

// DeleteRequestsByFamilyID removes every request of a family
func (r *RequestRepository) DeleteRequestsByFamilyID(ctx context.Context, familyID int64) (int64, error) {
	n, err := exec(ctx, r.store, "DELETE FROM requests WHERE family_id = ?", familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete requests: %w", err)
	}
	return n, nil
}

// ClearRequests removes every request
func (r *RequestRepository) ClearRequests(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM requests"); err != nil {
		return fmt.Errorf("failed to clear requests: %w", err)
	}
	return nil
}
