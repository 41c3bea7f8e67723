package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gopolls-dev/gopolls/internal/domain"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, is_admin, is_protected, polls,
    activated, COALESCE(activated_at, 'epoch'::timestamptz), activation_digest,
    reset_digest, COALESCE(reset_created_at, 'epoch'::timestamptz), created_at, updated_at`

// ListUsersParams controls directory pagination and ordering.
type ListUsersParams struct {
	Search        string // username substring, empty matches all
	SortBy        string // "joined" or "polls", anything else keeps insertion order
	SortAsc       bool
	Page          int // 1-based
	PerPage       int
	ShowProtected bool // admins see protected users too
}

// =========================================================================
// Public Methods (satisfy the service storage interfaces)
// =========================================================================

// SaveUser creates a new user record. Uniqueness violations on username or
// email come back as field-level validation errors, not fatal faults.
func (s *Storage) SaveUser(user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id domain.UserId
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.saveUser(tx, user)
		return err
	})
	return id, err
}

// UserByEmail fetches a user by email using the main connection pool.
func (s *Storage) UserByEmail(email domain.Email) (domain.User, error) {
	return s.user(s.db, "email = $1", email)
}

// UserByUsername fetches a user by username.
func (s *Storage) UserByUsername(username string) (domain.User, error) {
	return s.user(s.db, "username = $1", username)
}

// UpdateProfile persists the editable profile fields. An empty PassHash on
// the given user keeps the stored hash; a non-empty one replaces it and
// clears any pending reset digest, so previously emailed reset links stop
// verifying.
func (s *Storage) UpdateProfile(user domain.User) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateProfile(tx, user)
	})
}

// SetActivationDigest stores the server-side counterpart of a freshly issued
// activation token.
func (s *Storage) SetActivationDigest(userId domain.UserId, digest string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.setActivationDigest(tx, userId, digest)
	})
}

// SetResetDigest stores a reset digest and its issuance timestamp. Any
// previously pending digest is superseded unconditionally.
func (s *Storage) SetResetDigest(userId domain.UserId, digest string, createdAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.setResetDigest(tx, userId, digest, createdAt)
	})
}

// ConsumeActivation flips the activated flag and clears the digest in a
// single conditional update. The update matches on the current digest value
// and the unactivated state, so of two concurrent submissions only one can
// succeed; the loser gets a conflict error.
func (s *Storage) ConsumeActivation(userId domain.UserId, digest string, activatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.consumeActivation(tx, userId, digest, activatedAt)
	})
}

// ConsumeReset stores the new password hash and clears the reset digest in a
// single conditional update matched on the current digest value.
func (s *Storage) ConsumeReset(userId domain.UserId, digest string, newPassHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.consumeReset(tx, userId, digest, newPassHash)
	})
}

// ListUsers returns one page of the user directory plus the total count for
// the same filter.
func (s *Storage) ListUsers(params ListUsersParams) ([]domain.User, int, error) {
	return s.listUsers(s.db, params)
}

// DeleteUser removes a user record. Polls and votes cascade via the schema.
func (s *Storage) DeleteUser(username string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteUser(tx, username)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) saveUser(q Querier, user domain.User) (domain.UserId, error) {
	var id int64
	err := q.QueryRow(`
        INSERT INTO users(username, email, password_hash, is_admin, is_protected, activation_digest)
        VALUES($1, $2, $3, $4, $5, $6) RETURNING id`,
		user.Username, user.Email, user.PassHash, user.Admin, user.Protected, user.ActivationDigest,
	).Scan(&id)
	if err != nil {
		if verr := uniquenessError(err); verr != nil {
			return -1, verr
		}
		return -1, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

func (s *Storage) user(q Querier, where string, arg interface{}) (domain.User, error) {
	var user domain.User
	err := q.QueryRow("SELECT "+userColumns+" FROM users WHERE "+where, arg).Scan(
		&user.Id, &user.Username, &user.Email, &user.PassHash, &user.Admin, &user.Protected,
		&user.Polls, &user.Activated, &user.ActivatedAt, &user.ActivationDigest,
		&user.ResetDigest, &user.ResetCreatedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, &internal_errors.ErrorWithStatusCode{Message: "User not found", StatusCode: http.StatusNotFound}
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *Storage) updateProfile(q Querier, user domain.User) error {
	var result sql.Result
	var err error
	if user.PassHash == "" {
		result, err = q.Exec(`
            UPDATE users SET username = $1, email = $2, is_protected = $3, updated_at = now()
            WHERE id = $4`,
			user.Username, user.Email, user.Protected, user.Id)
	} else {
		result, err = q.Exec(`
            UPDATE users SET username = $1, email = $2, is_protected = $3, password_hash = $4,
                reset_digest = '', reset_created_at = NULL, updated_at = now()
            WHERE id = $5`,
			user.Username, user.Email, user.Protected, user.PassHash, user.Id)
	}
	if err != nil {
		if verr := uniquenessError(err); verr != nil {
			return verr
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return requireRows(result, "User not found for profile update")
}

func (s *Storage) setActivationDigest(q Querier, userId domain.UserId, digest string) error {
	result, err := q.Exec("UPDATE users SET activation_digest = $1, updated_at = now() WHERE id = $2", digest, userId)
	if err != nil {
		return fmt.Errorf("failed to set activation digest: %w", err)
	}
	return requireRows(result, "User not found for activation digest update")
}

func (s *Storage) setResetDigest(q Querier, userId domain.UserId, digest string, createdAt time.Time) error {
	result, err := q.Exec(`
        UPDATE users SET reset_digest = $1, reset_created_at = $2, updated_at = now()
        WHERE id = $3`,
		digest, createdAt, userId)
	if err != nil {
		return fmt.Errorf("failed to set reset digest: %w", err)
	}
	return requireRows(result, "User not found for reset digest update")
}

func (s *Storage) consumeActivation(q Querier, userId domain.UserId, digest string, activatedAt time.Time) error {
	result, err := q.Exec(`
        UPDATE users
        SET activated = TRUE, activated_at = $1, activation_digest = '', updated_at = now()
        WHERE id = $2 AND activated = FALSE AND activation_digest = $3`,
		activatedAt, userId, digest)
	if err != nil {
		return fmt.Errorf("failed to consume activation digest: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for activation: %w", err)
	}
	if rows == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Activation already consumed", StatusCode: http.StatusConflict}
	}
	return nil
}

func (s *Storage) consumeReset(q Querier, userId domain.UserId, digest string, newPassHash string) error {
	result, err := q.Exec(`
        UPDATE users
        SET password_hash = $1, reset_digest = '', reset_created_at = NULL, updated_at = now()
        WHERE id = $2 AND reset_digest = $3`,
		newPassHash, userId, digest)
	if err != nil {
		return fmt.Errorf("failed to consume reset digest: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for reset: %w", err)
	}
	if rows == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: "Reset already consumed", StatusCode: http.StatusConflict}
	}
	return nil
}

func (s *Storage) listUsers(q Querier, params ListUsersParams) ([]domain.User, int, error) {
	where := "activated = TRUE"
	args := []interface{}{}
	if !params.ShowProtected {
		where += " AND is_protected = FALSE"
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		where += fmt.Sprintf(" AND username ILIKE $%d", len(args))
	}

	var total int
	if err := q.QueryRow("SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	order := "id"
	switch params.SortBy {
	case "joined":
		order = "activated_at"
	case "polls":
		order = "polls"
	}
	dir := "DESC"
	if params.SortAsc {
		dir = "ASC"
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 30
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	// clamp the page when the filter shrank below the requested offset
	if (page-1)*perPage >= total && page > 1 {
		page = (total + perPage - 1) / perPage
		if page < 1 {
			page = 1
		}
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		userColumns, where, order, dir, len(args)-1, len(args))

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.Id, &user.Username, &user.Email, &user.PassHash, &user.Admin, &user.Protected,
			&user.Polls, &user.Activated, &user.ActivatedAt, &user.ActivationDigest,
			&user.ResetDigest, &user.ResetCreatedAt, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed iterating user rows: %w", err)
	}
	return users, total, nil
}

func (s *Storage) deleteUser(q Querier, username string) error {
	result, err := q.Exec("DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRows(result, "User not found for deletion")
}

// =========================================================================
// Helpers
// =========================================================================

func requireRows(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return &internal_errors.ErrorWithStatusCode{Message: notFoundMsg, StatusCode: http.StatusNotFound}
	}
	return nil
}

// uniquenessError maps a unique constraint violation onto a field-level
// validation error the form layer can re-render. Returns nil for anything
// that is not a unique violation.
func uniquenessError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	verr := domain.NewValidationError()
	switch pqErr.Constraint {
	case "users_username_key":
		verr.Add("username", "Username is already taken.")
	case "users_email_key":
		verr.Add("email", "Email is already taken.")
	case "polls_author_id_name_key":
		verr.Add("name", "You already have a poll with this name.")
	default:
		verr.Add("base", "Record already exists.")
	}
	return verr
}
