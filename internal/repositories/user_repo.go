package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nkuznetsov/vaultgate/internal/database"
	"github.com/nkuznetsov/vaultgate/internal/models"
)

// UserRepository handles credential store access.
// Every query is parameterized; caller-supplied strings are never
// interpolated into SQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// userColumns is the select list shared by all user lookups.
// COALESCE supplies the default role name when no role row joins.
const userColumns = `
	u.user_id, u.username, u.email, u.password_hash, u.full_name, u.phone_number,
	u.is_active, u.role_id, COALESCE(r.role_name, 'user'),
	u.failed_login_attempts, u.last_login, u.created_at`

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FullName, &user.PhoneNumber,
		&user.IsActive, &user.RoleID, &user.RoleName,
		&user.FailedLoginAttempts, &user.LastLogin, &user.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.role_id
		WHERE u.user_id = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.role_id
		WHERE u.username = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

// FindByUsernameOrEmail returns a row colliding with either identity field.
// When both collide on different rows, the username match is returned first
// so registration conflicts report the username before the email.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.role_id
		WHERE u.username = $1 OR u.email = $2
		ORDER BY (u.username = $1) DESC
		LIMIT 1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, username, email))
}

// Create inserts a new user and re-fetches the stored row to pick up the
// generated id, defaults, and the joined role name. The unique constraints
// on username and email are the authoritative guard against duplicate
// registration; violations are mapped back to the matching conflict error.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, full_name, phone_number, is_active, role_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING user_id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash,
		user.FullName, user.PhoneNumber, user.IsActive, user.RoleID,
	).Scan(&id)
	if err != nil {
		switch database.UniqueConstraint(err) {
		case "users_username_key":
			return nil, models.ErrUsernameExists
		case "users_email_key":
			return nil, models.ErrEmailExists
		}
		return nil, database.MapPostgresError(err)
	}

	created, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load created user: %w", err)
	}

	return created, nil
}

// IncrementFailedAttempts bumps the failed-attempt counter by one.
// A single UPDATE keeps the read-modify-write atomic under concurrency.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// RecordSuccessfulLogin stamps last_login and resets the failed-attempt counter.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET last_login = now(), failed_login_attempts = 0
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
