package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const memberColumns = "id, family_id, full_name, member_id, gender, relationship, is_disabled, created_at"

// MemberRepository handles database operations for family members
type MemberRepository struct {
	store
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *MemberRepository {
	return &MemberRepository{store: newStore(db, policy, log, "MemberRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *MemberRepository) WithTx(tx *database.Tx) *MemberRepository {
	return &MemberRepository{store: r.store.withTx(tx)}
}

func scanMember(row scanner) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(&m.ID, &m.FamilyID, &m.FullName, &m.MemberID, &m.Gender, &m.Relationship, &m.IsDisabled, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMemberByID retrieves a member by ID
func (r *MemberRepository) GetMemberByID(ctx context.Context, id int64) (*models.Member, error) {
	member, err := getOne(ctx, r.store, scanMember, "SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListMembers retrieves every member in id order
func (r *MemberRepository) ListMembers(ctx context.Context) ([]models.Member, error) {
	members, err := getAll(ctx, r.store, scanMember, "SELECT "+memberColumns+" FROM members ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ListMembersByFamilyID retrieves the members of one family
func (r *MemberRepository) ListMembersByFamilyID(ctx context.Context, familyID int64) ([]models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE family_id = ? ORDER BY id"
	members, err := getAll(ctx, r.store, scanMember, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members by family: %w", err)
	}
	return members, nil
}

// ListMembersByFamilyIDs retrieves the members of several families in one read
func (r *MemberRepository) ListMembersByFamilyIDs(ctx context.Context, familyIDs []int64) ([]models.Member, error) {
	if len(familyIDs) == 0 {
		return []models.Member{}, nil
	}
	placeholders, args := inClause(familyIDs)
	query := "SELECT " + memberColumns + " FROM members WHERE family_id IN (" + placeholders + ") ORDER BY id"
	members, err := getAll(ctx, r.store, scanMember, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members by families: %w", err)
	}
	return members, nil
}

// CreateMember inserts a new member
func (r *MemberRepository) CreateMember(ctx context.Context, member models.Member) (*models.Member, error) {
	member.CreatedAt = now()
	query := `
		INSERT INTO members (family_id, full_name, member_id, gender, relationship, is_disabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.store, query,
		member.FamilyID, member.FullName, member.MemberID, member.Gender, member.Relationship,
		member.IsDisabled, member.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	member.ID = id
	return &member, nil
}

// UpdateMember applies a partial update. It returns nil when the member does not exist.
func (r *MemberRepository) UpdateMember(ctx context.Context, id int64, patch models.MemberPatch) (*models.Member, error) {
	var a assignments
	setIf(&a, "full_name", patch.FullName)
	setIf(&a, "member_id", patch.MemberID)
	setIf(&a, "gender", patch.Gender)
	setIf(&a, "relationship", patch.Relationship)
	setIf(&a, "is_disabled", patch.IsDisabled)
	if err := a.update(ctx, r.store, "members", id); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return r.GetMemberByID(ctx, id)
}

// DeleteMember removes a member
func (r *MemberRepository) DeleteMember(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete member: %w", err)
	}
	return n > 0, nil
}

// DeleteMembersByFamilyID removes every member of a family
func (r *MemberRepository) DeleteMembersByFamilyID(ctx context.Context, familyID int64) (int64, error) {
	n, err := exec(ctx, r.store, "DELETE FROM members WHERE family_id = ?", familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete members: %w", err)
	}
	return n, nil
}

// ClearMembers removes every member
func (r *MemberRepository) ClearMembers(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM members"); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	return nil
}
