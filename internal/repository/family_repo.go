package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const familyColumns = `id, user_id, husband_name, husband_id, primary_phone, branch, social_status,
	total_members, is_displaced, is_abroad, war_damage, created_at`

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	store
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *FamilyRepository {
	return &FamilyRepository{store: newStore(db, policy, log, "FamilyRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *FamilyRepository) WithTx(tx *database.Tx) *FamilyRepository {
	return &FamilyRepository{store: r.store.withTx(tx)}
}

func scanFamily(row scanner) (*models.Family, error) {
	family := &models.Family{}
	err := row.Scan(
		&family.ID,
		&family.UserID,
		&family.HusbandName,
		&family.HusbandID,
		&family.PrimaryPhone,
		&family.Branch,
		&family.SocialStatus,
		&family.TotalMembers,
		&family.IsDisplaced,
		&family.IsAbroad,
		&family.WarDamage,
		&family.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return family, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, id int64) (*models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE id = ?"
	family, err := getOne(ctx, r.store, scanFamily, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return family, nil
}

// GetFamilyByUserID retrieves the first family registered by a user
func (r *FamilyRepository) GetFamilyByUserID(ctx context.Context, userID int64) (*models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE user_id = ? ORDER BY id LIMIT 1"
	family, err := getOne(ctx, r.store, scanFamily, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get family by user: %w", err)
	}
	return family, nil
}

// ListFamilies retrieves every family, newest first
func (r *FamilyRepository) ListFamilies(ctx context.Context) ([]models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families ORDER BY created_at DESC, id DESC"
	families, err := getAll(ctx, r.store, scanFamily, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	return families, nil
}

// ListFamiliesByIDs retrieves the families with the given ids in one read.
// Unknown ids are skipped.
func (r *FamilyRepository) ListFamiliesByIDs(ctx context.Context, ids []int64) ([]models.Family, error) {
	if len(ids) == 0 {
		return []models.Family{}, nil
	}
	placeholders, args := inClause(ids)
	query := "SELECT " + familyColumns + " FROM families WHERE id IN (" + placeholders + ") ORDER BY id"
	families, err := getAll(ctx, r.store, scanFamily, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list families by ids: %w", err)
	}
	return families, nil
}

// ListFamiliesByUserID retrieves the families registered by a user
func (r *FamilyRepository) ListFamiliesByUserID(ctx context.Context, userID int64) ([]models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	families, err := getAll(ctx, r.store, scanFamily, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list families by user: %w", err)
	}
	return families, nil
}

// CreateFamily inserts a new family
func (r *FamilyRepository) CreateFamily(ctx context.Context, family models.Family) (*models.Family, error) {
	family.CreatedAt = now()
	query := `
		INSERT INTO families (user_id, husband_name, husband_id, primary_phone, branch, social_status,
			total_members, is_displaced, is_abroad, war_damage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.store, query,
		family.UserID, family.HusbandName, family.HusbandID, family.PrimaryPhone, family.Branch,
		family.SocialStatus, family.TotalMembers, family.IsDisplaced, family.IsAbroad, family.WarDamage,
		family.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}
	family.ID = id
	return &family, nil
}

// UpdateFamily applies a partial update. It returns nil when the family does not exist.
func (r *FamilyRepository) UpdateFamily(ctx context.Context, id int64, patch models.FamilyPatch) (*models.Family, error) {
	var a assignments
	setIf(&a, "user_id", patch.UserID)
	setIf(&a, "husband_name", patch.HusbandName)
	setIf(&a, "husband_id", patch.HusbandID)
	setIf(&a, "primary_phone", patch.PrimaryPhone)
	setIf(&a, "branch", patch.Branch)
	setIf(&a, "social_status", patch.SocialStatus)
	setIf(&a, "total_members", patch.TotalMembers)
	setIf(&a, "is_displaced", patch.IsDisplaced)
	setIf(&a, "is_abroad", patch.IsAbroad)
	setIf(&a, "war_damage", patch.WarDamage)
	if err := a.update(ctx, r.store, "families", id); err != nil {
		return nil, fmt.Errorf("failed to update family: %w", err)
	}
	return r.GetFamilyByID(ctx, id)
}

// DeleteFamily removes the family row only. Dependent rows are removed by
// FamilyService.DeleteFamily.
func (r *FamilyRepository) DeleteFamily(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM families WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete family: %w", err)
	}
	return n > 0, nil
}

// ClearFamilies removes every family
func (r *FamilyRepository) ClearFamilies(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM families"); err != nil {
		return fmt.Errorf("failed to clear families: %w", err)
	}
	return nil
}
