package pet

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const petColumns = `id, nickname, age, vaccinated, description, owner_id, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, accountID string, input PetInput) (Pet, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Pet{}, fmt.Errorf("generate pet id: %w", err)
	}

	now := time.Now().UTC()
	p := Pet{
		ID:          id.String(),
		Nickname:    input.Nickname,
		Age:         input.Age,
		Vaccinated:  input.Vaccinated,
		Description: input.Description,
		OwnerID:     input.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pets (id, account_id, nickname, age, vaccinated, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, p.ID, accountID, p.Nickname, p.Age, p.Vaccinated, p.Description, p.OwnerID, p.CreatedAt)
	if err != nil {
		return Pet{}, fmt.Errorf("insert pet: %w", err)
	}

	return p, nil
}

func (r *Repository) List(ctx context.Context, accountID string, filter ListFilter) ([]Pet, error) {
	query := `
		SELECT ` + petColumns + `
		FROM pets
		WHERE account_id = $1`
	args := []any{accountID}

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += ` AND owner_id = $` + strconv.Itoa(len(args))
	}
	if filter.Vaccinated != nil {
		args = append(args, *filter.Vaccinated)
		query += ` AND vaccinated = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pets: %w", err)
	}
	defer rows.Close()

	pets := make([]Pet, 0)
	for rows.Next() {
		var p Pet
		if err := rows.Scan(&p.ID, &p.Nickname, &p.Age, &p.Vaccinated, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}

	return pets, nil
}

func (r *Repository) Get(ctx context.Context, accountID, id string) (Pet, error) {
	var p Pet
	err := r.db.QueryRowContext(ctx, `
		SELECT `+petColumns+`
		FROM pets
		WHERE id = $1 AND account_id = $2
	`, id, accountID).Scan(&p.ID, &p.Nickname, &p.Age, &p.Vaccinated, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Pet{}, err
		}
		return Pet{}, fmt.Errorf("query pet: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, accountID, id string, input PetInput) (Pet, error) {
	var p Pet
	err := r.db.QueryRowContext(ctx, `
		UPDATE pets
		SET nickname = $3, age = $4, vaccinated = $5, description = $6, owner_id = $7, updated_at = $8
		WHERE id = $1 AND account_id = $2
		RETURNING `+petColumns+`
	`, id, accountID, input.Nickname, input.Age, input.Vaccinated, input.Description, input.OwnerID, time.Now().UTC()).
		Scan(&p.ID, &p.Nickname, &p.Age, &p.Vaccinated, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Pet{}, err
		}
		return Pet{}, fmt.Errorf("update pet: %w", err)
	}

	return p, nil
}

func (r *Repository) SetVaccinated(ctx context.Context, accountID, id string, vaccinated bool) (Pet, error) {
	var p Pet
	err := r.db.QueryRowContext(ctx, `
		UPDATE pets
		SET vaccinated = $3, updated_at = $4
		WHERE id = $1 AND account_id = $2
		RETURNING `+petColumns+`
	`, id, accountID, vaccinated, time.Now().UTC()).
		Scan(&p.ID, &p.Nickname, &p.Age, &p.Vaccinated, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Pet{}, err
		}
		return Pet{}, fmt.Errorf("set pet vaccinated: %w", err)
	}

	return p, nil
}

func (r *Repository) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pets WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete pet: %w", err)
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
