package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/model"
)

// PipelineRepo encapsulates all database queries related to pipelines.
type PipelineRepo struct {
	db     database.DBTX
	driver database.Driver
}

func NewPipelineRepo(db database.DBTX, driver database.Driver) *PipelineRepo {
	return &PipelineRepo{db: db, driver: driver}
}

// Create inserts p and sets its ID.  If the owner row is gone the insert
// fails with ErrOwnerMissing.
func (r *PipelineRepo) Create(ctx context.Context, p *model.Pipeline) error {
	const q = "INSERT INTO pipelines (name, status, owner_id, created_at) VALUES (?, ?, ?, ?)"
	id, err := insertID(ctx, r.db, r.driver, q, p.Name, p.Status, p.OwnerID, p.CreatedAt)
	if err != nil {
		if r.driver.IsForeignKeyViolation(err) {
			return ErrOwnerMissing
		}
		return fmt.Errorf("insert pipeline: %w", err)
	}
	p.ID = id
	return nil
}

// GetByID fetches a pipeline regardless of owner, joined with the owner's
// username.  Ownership is decided by the caller.
func (r *PipelineRepo) GetByID(ctx context.Context, id uint64) (*model.Pipeline, error) {
	const q = `SELECT p.id, p.name, p.status, p.owner_id, u.username, p.created_at
	           FROM pipelines p JOIN users u ON u.id = p.owner_id
	           WHERE p.id = ?`
	var p model.Pipeline
	err := r.db.QueryRowContext(ctx, r.driver.Rebind(q), id).
		Scan(&p.ID, &p.Name, &p.Status, &p.OwnerID, &p.OwnerUsername, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query pipeline: %w", err)
	}
	return &p, nil
}

// ListByOwner returns all pipelines for a specific owner ordered by id.
func (r *PipelineRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*model.Pipeline, error) {
	const q = `SELECT id, name, status, owner_id, created_at
	           FROM pipelines WHERE owner_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, r.driver.Rebind(q), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	out := []*model.Pipeline{}
	for rows.Next() {
		p := new(model.Pipeline)
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return out, nil
}

// UpdateByIDAndOwner sets name and status if the pipeline belongs to the
// owner.  It returns ErrNotFound when no row matches.
func (r *PipelineRepo) UpdateByIDAndOwner(ctx context.Context, id, ownerID uint64, name, status string) error {
	const q = `UPDATE pipelines SET name = ?, status = ? WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, r.driver.Rebind(q), name, status, id, ownerID)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	return expectOneRow(res)
}

// DeleteByIDAndOwner removes the pipeline if it belongs to the owner.  It
// returns ErrNotFound when no row matches.
func (r *PipelineRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	const q = `DELETE FROM pipelines WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, r.driver.Rebind(q), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	return expectOneRow(res)
}

// expectOneRow maps zero affected rows to ErrNotFound.  MySQL connections
// are opened with clientFoundRows so an UPDATE writing identical values
// still counts its matched row.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
