package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/model"
)

const userColumns = "id, username, email, password_hash, created_at"

// UserRepo reads and writes the 'users' table.
type UserRepo struct {
	db     database.DBTX
	driver database.Driver
}

func NewUserRepo(db database.DBTX, driver database.Driver) *UserRepo {
	return &UserRepo{db: db, driver: driver}
}

// Create inserts u and sets its ID.  A unique violation on username or
// email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = "INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)"
	id, err := insertID(ctx, r.db, r.driver, q, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if r.driver.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE username = ? LIMIT 1"
	return r.scanOne(r.db.QueryRowContext(ctx, r.driver.Rebind(q), username))
}

// GetByUsernameOrEmail returns the first user whose username or email
// matches.  Used to reject signups before attempting the insert.
func (r *UserRepo) GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE username = ? OR email = ? LIMIT 1"
	return r.scanOne(r.db.QueryRowContext(ctx, r.driver.Rebind(q), username, email))
}

func (r *UserRepo) scanOne(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// insertID runs an INSERT and returns the generated id, using RETURNING on
// drivers without LastInsertId support.
func insertID(ctx context.Context, db database.DBTX, d database.Driver, q string, args ...any) (uint64, error) {
	if !d.SupportsLastInsertID() {
		var id uint64
		if err := db.QueryRowContext(ctx, d.Rebind(q+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
