package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const recipientColumns = "id, voucher_id, family_id, status, notes, updated_at"

// VoucherRecipientRepository handles the families assigned to a voucher.
// family_id is a plain reference: a deleted family leaves its recipient rows behind.
type VoucherRecipientRepository struct {
	store
}

// NewVoucherRecipientRepository creates a new voucher recipient repository
func NewVoucherRecipientRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *VoucherRecipientRepository {
	return &VoucherRecipientRepository{store: newStore(db, policy, log, "VoucherRecipientRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *VoucherRecipientRepository) WithTx(tx *database.Tx) *VoucherRecipientRepository {
	return &VoucherRecipientRepository{store: r.store.withTx(tx)}
}

func scanRecipient(row scanner) (*models.VoucherRecipient, error) {
	rec := &models.VoucherRecipient{}
	if err := row.Scan(&rec.ID, &rec.VoucherID, &rec.FamilyID, &rec.Status, &rec.Notes, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecipientByID retrieves a recipient by ID
func (r *VoucherRecipientRepository) GetRecipientByID(ctx context.Context, id int64) (*models.VoucherRecipient, error) {
	query := "SELECT " + recipientColumns + " FROM voucher_recipients WHERE id = ?"
	rec, err := getOne(ctx, r.store, scanRecipient, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return rec, nil
}

// ListRecipients retrieves every recipient in id order
func (r *VoucherRecipientRepository) ListRecipients(ctx context.Context) ([]models.VoucherRecipient, error) {
	recs, err := getAll(ctx, r.store, scanRecipient, "SELECT "+recipientColumns+" FROM voucher_recipients ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recs, nil
}

// ListRecipientsByVoucherID retrieves the recipients of one voucher
func (r *VoucherRecipientRepository) ListRecipientsByVoucherID(ctx context.Context, voucherID int64) ([]models.VoucherRecipient, error) {
	query := "SELECT " + recipientColumns + " FROM voucher_recipients WHERE voucher_id = ? ORDER BY id"
	recs, err := getAll(ctx, r.store, scanRecipient, query, voucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients by voucher: %w", err)
	}
	return recs, nil
}

// ListRecipientsByVoucherIDs retrieves the recipients of several vouchers in one read
func (r *VoucherRecipientRepository) ListRecipientsByVoucherIDs(ctx context.Context, voucherIDs []int64) ([]models.VoucherRecipient, error) {
	if len(voucherIDs) == 0 {
		return []models.VoucherRecipient{}, nil
	}
	placeholders, args := inClause(voucherIDs)
	query := "SELECT " + recipientColumns + " FROM voucher_recipients WHERE voucher_id IN (" + placeholders + ") ORDER BY id"
	recs, err := getAll(ctx, r.store, scanRecipient, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients by vouchers: %w", err)
	}
	return recs, nil
}

// CreateRecipient assigns a family to a voucher. An empty status becomes pending.
func (r *VoucherRecipientRepository) CreateRecipient(ctx context.Context, rec models.VoucherRecipient) (*models.VoucherRecipient, error) {
	if rec.Status == "" {
		rec.Status = models.RecipientPending
	}
	rec.UpdatedAt = now()
	query := "INSERT INTO voucher_recipients (voucher_id, family_id, status, notes, updated_at) VALUES (?, ?, ?, ?, ?)"
	id, err := insert(ctx, r.store, query, rec.VoucherID, rec.FamilyID, rec.Status, rec.Notes, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	rec.ID = id
	return &rec, nil
}

// UpdateRecipient applies a partial update and refreshes updated_at
func (r *VoucherRecipientRepository) UpdateRecipient(ctx context.Context, id int64, patch models.VoucherRecipientPatch) (*models.VoucherRecipient, error) {
	var a assignments
	setIf(&a, "status", patch.Status)
	setIf(&a, "notes", patch.Notes)
	a.set("updated_at", now())
	if err := a.update(ctx, r.store, "voucher_recipients", id); err != nil {
		return nil, fmt.Errorf("failed to update recipient: %w", err)
	}
	return r.GetRecipientByID(ctx, id)
}

// DeleteRecipient removes a recipient
func (r *VoucherRecipientRepository) DeleteRecipient(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM voucher_recipients WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recipient: %w", err)
	}
	return n > 0, nil
}

// DeleteRecipientsByVoucherID removes every recipient of a voucher
func (r *VoucherRecipientRepository) DeleteRecipientsByVoucherID(ctx context.Context, voucherID int64) (int64, error) {
	n, err := exec(ctx, r.store, "DELETE FROM voucher_recipients WHERE voucher_id = ?", voucherID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recipients: %w", err)
	}
	return n, nil
}

// ClearRecipients removes every recipient
func (r *VoucherRecipientRepository) ClearRecipients(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM voucher_recipients"); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}
	return nil
}
