package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

// ErrUsernameTaken is returned when a live user already holds the username
var ErrUsernameTaken = errors.New("username already taken")

const userColumns = "id, username, password_hash, role, phone, created_at, deleted_at"

// UserRepository handles database operations for users. Soft-deleted users
// are invisible to lookups unless includeDeleted is requested.
type UserRepository struct {
	store
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *UserRepository {
	return &UserRepository{store: newStore(db, policy, log, "UserRepository")}
}

// WithTx returns a copy of the repository bound to tx
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{store: r.store.withTx(tx)}
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var deletedAt sql.NullTime
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Phone,
		&user.CreatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	user.DeletedAt = nullTime(deletedAt)
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64, includeDeleted bool) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	user, err := getOne(ctx, r.store, scanUser, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a live user by username. This lookup sits on
// the login path.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ? AND deleted_at IS NULL"
	user, err := getOne(ctx, r.store, scanUser, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// usernameHeldByOther reports whether a live user other than id holds username.
// MySQL has no partial unique index, so this check is the only guard there.
func (r *UserRepository) usernameHeldByOther(ctx context.Context, username string, id int64) (bool, error) {
	holder, err := r.GetUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return holder != nil && holder.ID != id, nil
}

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// GetUserByNationalID retrieves the live user owning the family whose
// husband carries the given national identifier
func (r *UserRepository) GetUserByNationalID(ctx context.Context, nationalID string) (*models.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.role, u.phone, u.created_at, u.deleted_at
		FROM families f
		INNER JOIN users u ON f.user_id = u.id AND u.deleted_at IS NULL
		WHERE f.husband_id = ?
		ORDER BY f.id
		LIMIT 1
	`
	user, err := getOne(ctx, r.store, scanUser, query, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by national id: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all users, oldest first
func (r *UserRepository) ListUsers(ctx context.Context, includeDeleted bool) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	if !includeDeleted {
		query += " WHERE deleted_at IS NULL"
	}
	query += " ORDER BY id"
	users, err := getAll(ctx, r.store, scanUser, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a new user. The username must not be held by another
// live user.
func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	existing, err := r.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	if user.Role == "" {
		user.Role = models.RoleHead
	}
	user.CreatedAt = now()
	user.DeletedAt = nil

	query := `
		INSERT INTO users (username, password_hash, role, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := insert(ctx, r.store, query, user.Username, user.PasswordHash, user.Role, user.Phone, user.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id

	r.log.Info("user created", "user_id", id, "role", user.Role)
	return &user, nil
}

// UpdateUser applies a partial update. It returns nil when the user does not
// exist and ErrUsernameTaken when a live user is renamed onto another live
// user's username.
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	if patch.Username != nil {
		current, err := r.GetUserByID(ctx, id, true)
		if err != nil || current == nil {
			return nil, err
		}
		if !current.IsDeleted() {
			taken, err := r.usernameHeldByOther(ctx, *patch.Username, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrUsernameTaken
			}
		}
	}

	var a assignments
	setIf(&a, "username", patch.Username)
	setIf(&a, "password_hash", patch.PasswordHash)
	setIf(&a, "role", patch.Role)
	setIf(&a, "phone", patch.Phone)
	if err := a.update(ctx, r.store, "users", id); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return r.GetUserByID(ctx, id, true)
}

// DeleteUser permanently removes a user
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return n > 0, nil
}

// SoftDeleteUser marks a live user as deleted
func (r *UserRepository) SoftDeleteUser(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete user: %w", err)
	}
	return n > 0, nil
}

// RestoreUser clears the deletion mark of a soft-deleted user. It returns
// ErrUsernameTaken when a live user has taken the username in the meantime.
func (r *UserRepository) RestoreUser(ctx context.Context, id int64) (bool, error) {
	user, err := r.GetUserByID(ctx, id, true)
	if err != nil {
		return false, err
	}
	if user == nil || !user.IsDeleted() {
		return false, nil
	}
	taken, err := r.usernameHeldByOther(ctx, user.Username, id)
	if err != nil {
		return false, err
	}
	if taken {
		return false, ErrUsernameTaken
	}

	n, err := exec(ctx, r.store, "UPDATE users SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL", id)
	if isUniqueViolation(err) {
		return false, ErrUsernameTaken
	}
	if err != nil {
		return false, fmt.Errorf("failed to restore user: %w", err)
	}
	return n > 0, nil
}

// ClearUsers removes every user
func (r *UserRepository) ClearUsers(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM users"); err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	return nil
}
