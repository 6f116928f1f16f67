package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const wifeColumns = "id, family_id, wife_name, wife_id, created_at"

// WifeRepository handles database operations for wives
type WifeRepository struct {
	store
}

func NewWifeRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *WifeRepository {
	return &WifeRepository{store: newStore(db, policy, log, "WifeRepository")}
}

func (r *WifeRepository) WithTx(tx *database.Tx) *WifeRepository {
	return &WifeRepository{store: r.store.withTx(tx)}
}

func scanWife(row scanner) (*models.Wife, error) {
	wife := &models.Wife{}
	if err := row.Scan(&wife.ID, &wife.FamilyID, &wife.WifeName, &wife.WifeID, &wife.CreatedAt); err != nil {
		return nil, err
	}
	return wife, nil
}

func (r *WifeRepository) GetWifeByID(ctx context.Context, id int64) (*models.Wife, error) {
	wife, err := getOne(ctx, r.store, scanWife, "SELECT "+wifeColumns+" FROM wives WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get wife: %w", err)
	}
	return wife, nil
}

func (r *WifeRepository) ListWives(ctx context.Context) ([]models.Wife, error) {
	wives, err := getAll(ctx, r.store, scanWife, "SELECT "+wifeColumns+" FROM wives ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list wives: %w", err)
	}
	return wives, nil
}

func (r *WifeRepository) ListWivesByFamilyID(ctx context.Context, familyID int64) ([]models.Wife, error) {
	query := "SELECT " + wifeColumns + " FROM wives WHERE family_id = ? ORDER BY id"
	wives, err := getAll(ctx, r.store, scanWife, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wives by family: %w", err)
	}
	return wives, nil
}

func (r *WifeRepository) CreateWife(ctx context.Context, wife models.Wife) (*models.Wife, error) {
	wife.CreatedAt = now()
	query := "INSERT INTO wives (family_id, wife_name, wife_id, created_at) VALUES (?, ?, ?, ?)"
	id, err := insert(ctx, r.store, query, wife.FamilyID, wife.WifeName, wife.WifeID, wife.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create wife: %w", err)
	}
	wife.ID = id
	return &wife, nil
}

func (r *WifeRepository) UpdateWife(ctx context.Context, id int64, patch models.WifePatch) (*models.Wife, error) {
	var a assignments
	setIf(&a, "wife_name", patch.WifeName)
	setIf(&a, "wife_id", patch.WifeID)
	if err := a.update(ctx, r.store, "wives", id); err != nil {
		return nil, fmt.Errorf("failed to update wife: %w", err)
	}
	return r.GetWifeByID(ctx, id)
}

func (r *WifeRepository) DeleteWife(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM wives WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete wife: %w", err)
	}
	return n > 0, nil
}

// DeleteWivesByFamilyID removes every wife of a family and returns how many were removed
func (r *WifeRepository) DeleteWivesByFamilyID(ctx context.Context, familyID int64) (int64, error) {
	n, err := exec(ctx, r.store, "DELETE FROM wives WHERE family_id = ?", familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete wives: %w", err)
	}
	return n, nil
}

func (r *WifeRepository) ClearWives(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM wives"); err != nil {
		return fmt.Errorf("failed to clear wives: %w", err)
	}
	return nil
}
