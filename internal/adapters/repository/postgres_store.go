package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const resourceColumns = `id, name, type, category, wing, floor, room, status, last_updated,
		updated_by, verified_by, verified_at, owned_by, stall_number`

// PostgresStore persists resources in a flat resources table and keeps the
// snapshot version in the single-row sync_state table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.ResourceStore = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (r *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	r.now = now
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (domain.Resource, error) {
	var rec domain.ResourceRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Type, &rec.Category, &rec.Wing, &rec.Floor, &rec.Room,
		&rec.Status, &rec.LastUpdated, &rec.UpdatedBy, &rec.VerifiedBy, &rec.VerifiedAt,
		&rec.OwnedBy, &rec.StallNumber,
	)
	if err != nil {
		return domain.Resource{}, err
	}
	return rec.Resource()
}

func (r *PostgresStore) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Category != "" {
		add("category", string(filter.Category))
	}
	if filter.Wing != "" {
		add("wing", filter.Wing)
	}
	if filter.Floor != 0 {
		add("floor", filter.Floor)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	query := "SELECT " + resourceColumns + " FROM resources"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list resources", err)
	}
	defer rows.Close()

	out := []domain.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, storageErr("scan resource", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list resources", err)
	}
	return out, nil
}

func (r *PostgresStore) GetByID(ctx context.Context, id int64) (domain.Resource, error) {
	res, err := scanResource(r.db.QueryRowContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Resource{}, domain.ErrNotFound
		}
		return domain.Resource{}, storageErr("get resource", err)
	}
	return res, nil
}

func (r *PostgresStore) GetByName(ctx context.Context, name string) (domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE name = $1 ORDER BY id LIMIT 2", name)
	if err != nil {
		return domain.Resource{}, storageErr("get resource by name", err)
	}
	defer rows.Close()

	var found []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return domain.Resource{}, storageErr("scan resource", err)
		}
		found = append(found, res)
	}
	if err := rows.Err(); err != nil {
		return domain.Resource{}, storageErr("get resource by name", err)
	}
	switch len(found) {
	case 0:
		return domain.Resource{}, domain.ErrNotFound
	case 1:
		return found[0], nil
	}
	return domain.Resource{}, domain.NewValidationError("name", "resource name is ambiguous, use the id")
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresStore) Create(ctx context.Context, in domain.ResourceInput) (domain.Resource, error) {
	return r.insert(ctx, r.db, in)
}

// CreateVersioned inserts the resource and bumps the snapshot version in one
// transaction.
func (r *PostgresStore) CreateVersioned(ctx context.Context, in domain.ResourceInput) (domain.Resource, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, 0, storageErr("begin create", err)
	}
	defer tx.Rollback()

	res, err := r.insert(ctx, tx, in)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	v, err := bumpVersion(ctx, tx)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Resource{}, 0, storageErr("commit create", err)
	}
	return res, v, nil
}

func (r *PostgresStore) insert(ctx context.Context, q rowQuerier, in domain.ResourceInput) (domain.Resource, error) {
	res := domain.Resource{Name: in.Name, Type: in.Type, Details: in.Details, LastUpdated: r.now().UTC()}
	if err := res.Validate(); err != nil {
		return domain.Resource{}, err
	}
	rec := res.Record()

	err := q.QueryRowContext(ctx,
		`INSERT INTO resources (name, type, category, wing, floor, room, status, last_updated, owned_by, stall_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		rec.Name, rec.Type, string(rec.Category), rec.Wing, rec.Floor, rec.Room,
		string(rec.Status), rec.LastUpdated, rec.OwnedBy, rec.StallNumber,
	).Scan(&res.ID)
	if err != nil {
		return domain.Resource{}, storageErr("create resource", err)
	}
	return res, nil
}

// Update locks the row, merges the patch and writes the mutable columns back
// in one transaction.
func (r *PostgresStore) Update(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, storageErr("begin update", err)
	}
	defer tx.Rollback()

	next, err := r.update(ctx, tx, id, patch)
	if err != nil {
		return domain.Resource{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Resource{}, storageErr("commit update", err)
	}
	return next, nil
}

// UpdateVersioned is Update plus the version bump, committed together. A
// failed bump rolls the row change back.
func (r *PostgresStore) UpdateVersioned(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, 0, storageErr("begin update", err)
	}
	defer tx.Rollback()

	next, err := r.update(ctx, tx, id, patch)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	v, err := bumpVersion(ctx, tx)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Resource{}, 0, storageErr("commit update", err)
	}
	return next, v, nil
}

func (r *PostgresStore) update(ctx context.Context, tx *sql.Tx, id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	current, err := scanResource(tx.QueryRowContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Resource{}, domain.ErrNotFound
		}
		return domain.Resource{}, storageErr("lock resource", err)
	}

	next, err := patch.Apply(current)
	if err != nil {
		return domain.Resource{}, err
	}
	if err := next.Validate(); err != nil {
		return domain.Resource{}, err
	}
	next.LastUpdated = r.now().UTC()
	rec := next.Record()

	_, err = tx.ExecContext(ctx,
		`UPDATE resources
		 SET name = $2, type = $3, status = $4, last_updated = $5, updated_by = $6, verified_by = $7, verified_at = $8
		 WHERE id = $1`,
		id, rec.Name, rec.Type, string(rec.Status), rec.LastUpdated, rec.UpdatedBy, rec.VerifiedBy, rec.VerifiedAt,
	)
	if err != nil {
		return domain.Resource{}, storageErr("update resource", err)
	}
	return next, nil
}

func (r *PostgresStore) CurrentVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM sync_state WHERE id = 1").Scan(&v); err != nil {
		return 0, storageErr("read version", err)
	}
	return v, nil
}

func (r *PostgresStore) BumpVersion(ctx context.Context) (int64, error) {
	return bumpVersion(ctx, r.db)
}

func bumpVersion(ctx context.Context, q rowQuerier) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx,
		"UPDATE sync_state SET version = version + 1 WHERE id = 1 RETURNING version").Scan(&v)
	if err != nil {
		return 0, storageErr("bump version", err)
	}
	return v, nil
}

// PostgresContributorStore aggregates accepted updates per identity.
type PostgresContributorStore struct {
	db *sql.DB
}

var _ ports.ContributorStore = (*PostgresContributorStore)(nil)

func NewPostgresContributorStore(db *sql.DB) *PostgresContributorStore {
	return &PostgresContributorStore{db: db}
}

func (r *PostgresContributorStore) Increment(ctx context.Context, actor domain.Actor, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contributors (user_code, username, user_type, update_count, last_active)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (user_code) DO UPDATE
		 SET update_count = contributors.update_count + 1,
		     last_active = EXCLUDED.last_active,
		     username = COALESCE(NULLIF(EXCLUDED.username, ''), contributors.username),
		     user_type = EXCLUDED.user_type`,
		actor.UserCode, actor.Username, string(actor.UserType), at.UTC(),
	)
	if err != nil {
		return storageErr("increment contributor", err)
	}
	return nil
}

func (r *PostgresContributorStore) Top(ctx context.Context, limit int) ([]domain.Contributor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_code, username, user_type, update_count, last_active
		 FROM contributors
		 ORDER BY update_count DESC, last_active DESC, user_code
		 LIMIT $1`, limit)
	if err != nil {
		return nil, storageErr("top contributors", err)
	}
	defer rows.Close()

	out := []domain.Contributor{}
	for rows.Next() {
		var c domain.Contributor
		if err := rows.Scan(&c.UserCode, &c.Username, &c.UserType, &c.UpdateCount, &c.LastActive); err != nil {
			return nil, storageErr("scan contributor", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("top contributors", err)
	}
	return out, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
