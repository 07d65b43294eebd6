package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type PostgresUserStore struct {
	db *sql.DB
}

var _ ports.UserStore = (*PostgresUserStore)(nil)

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		createdBy sql.NullString
		attrs     []byte
	)
	if err := row.Scan(&u.UserCode, &u.Username, &u.UserType, &u.IsActive, &createdBy, &u.CreatedAt, &attrs); err != nil {
		return domain.User{}, err
	}
	u.CreatedBy = createdBy.String
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &u.Attributes); err != nil {
			return domain.User{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return u, nil
}

func (r *PostgresUserStore) GetByCode(ctx context.Context, code string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT user_code, username, user_type, is_active, created_by, created_at, attributes
		 FROM users WHERE user_code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, storageErr("get user", err)
	}
	return u, nil
}

func (r *PostgresUserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	attrs, err := json.Marshal(user.Attributes)
	if err != nil {
		return domain.User{}, fmt.Errorf("encode attributes: %w", err)
	}
	var createdBy sql.NullString
	if user.CreatedBy != "" {
		createdBy = sql.NullString{String: user.CreatedBy, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (user_code, username, user_type, is_active, created_by, created_at, attributes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.UserCode, user.Username, string(user.UserType), user.IsActive, createdBy, user.CreatedAt, attrs,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, storageErr("create user", err)
	}
	return user, nil
}

func (r *PostgresUserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_code, username, user_type, is_active, created_by, created_at, attributes
		 FROM users ORDER BY user_code`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	return out, nil
}

func (r *PostgresUserStore) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET is_active = $2 WHERE user_code = $1", code, active)
	if err != nil {
		return storageErr("set user active", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("set user active", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
