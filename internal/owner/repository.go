package owner

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, accountID string, input OwnerInput) (Owner, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Owner{}, fmt.Errorf("generate owner id: %w", err)
	}

	o := Owner{
		ID:        id.String(),
		Email:     input.Email,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO owners (id, account_id, email, created_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID, accountID, o.Email, o.CreatedAt)
	if err != nil {
		return Owner{}, fmt.Errorf("insert owner: %w", err)
	}

	return o, nil
}

func (r *Repository) List(ctx context.Context, accountID string) ([]Owner, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, created_at
		FROM owners
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	owners := make([]Owner, 0)
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.Email, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}

	return owners, nil
}

func (r *Repository) Get(ctx context.Context, accountID, id string) (Owner, error) {
	var o Owner
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, created_at
		FROM owners
		WHERE id = $1 AND account_id = $2
	`, id, accountID).Scan(&o.ID, &o.Email, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Owner{}, err
		}
		return Owner{}, fmt.Errorf("query owner: %w", err)
	}

	return o, nil
}

func (r *Repository) Update(ctx context.Context, accountID, id string, input OwnerInput) (Owner, error) {
	var o Owner
	err := r.db.QueryRowContext(ctx, `
		UPDATE owners
		SET email = $3
		WHERE id = $1 AND account_id = $2
		RETURNING id, email, created_at
	`, id, accountID, input.Email).Scan(&o.ID, &o.Email, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Owner{}, err
		}
		return Owner{}, fmt.Errorf("update owner: %w", err)
	}

	return o, nil
}

func (r *Repository) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM owners WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
