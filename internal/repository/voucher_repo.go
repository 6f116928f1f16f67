package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const voucherColumns = "id, title, description, support_type, created_by, is_active, created_at"

// VoucherRepository handles database operations for support vouchers
type VoucherRepository struct {
	store
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *VoucherRepository {
	return &VoucherRepository{store: newStore(db, policy, log, "VoucherRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *VoucherRepository) WithTx(tx *database.Tx) *VoucherRepository {
	return &VoucherRepository{store: r.store.withTx(tx)}
}

func scanVoucher(row scanner) (*models.SupportVoucher, error) {
	v := &models.SupportVoucher{}
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.SupportType, &v.CreatedBy, &v.IsActive, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetVoucherByID retrieves a voucher by ID
func (r *VoucherRepository) GetVoucherByID(ctx context.Context, id int64) (*models.SupportVoucher, error) {
	query := "SELECT " + voucherColumns + " FROM support_vouchers WHERE id = ?"
	v, err := getOne(ctx, r.store, scanVoucher, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return v, nil
}

// ListVouchers retrieves every voucher, newest first
func (r *VoucherRepository) ListVouchers(ctx context.Context) ([]models.SupportVoucher, error) {
	query := "SELECT " + voucherColumns + " FROM support_vouchers ORDER BY created_at DESC, id DESC"
	vs, err := getAll(ctx, r.store, scanVoucher, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	return vs, nil
}

// CreateVoucher inserts a new voucher
func (r *VoucherRepository) CreateVoucher(ctx context.Context, v models.SupportVoucher) (*models.SupportVoucher, error) {
	v.CreatedAt = now()
	query := `
		INSERT INTO support_vouchers (title, description, support_type, created_by, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.store, query, v.Title, v.Description, v.SupportType, v.CreatedBy, v.IsActive, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create voucher: %w", err)
	}
	v.ID = id
	return &v, nil
}

// UpdateVoucher applies a partial update. It returns nil when the voucher does not exist.
func (r *VoucherRepository) UpdateVoucher(ctx context.Context, id int64, patch models.SupportVoucherPatch) (*models.SupportVoucher, error) {
	var a assignments
	setIf(&a, "title", patch.Title)
	setIf(&a, "description", patch.Description)
	setIf(&a, "support_type", patch.SupportType)
	setIf(&a, "is_active", patch.IsActive)
	if err := a.update(ctx, r.store, "support_vouchers", id); err != nil {
		return nil, fmt.Errorf("failed to update voucher: %w", err)
	}
	return r.GetVoucherByID(ctx, id)
}

// DeleteVoucher removes a voucher. Its recipients must be removed first.
func (r *VoucherRepository) DeleteVoucher(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM support_vouchers WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete voucher: %w", err)
	}
	return n > 0, nil
}

// ClearVouchers removes every voucher
func (r *VoucherRepository) ClearVouchers(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM support_vouchers"); err != nil {
		return fmt.Errorf("failed to clear vouchers: %w", err)
	}
	return nil
}
