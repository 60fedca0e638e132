package contact

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is tenant-scoped: every query filters by the owning account id,
// so one registrant can never read or mutate another's contacts.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const contactColumns = `id, name, surname, email, phone_number, date_of_birth, description, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, accountID string, input ContactInput) (Contact, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Contact{}, fmt.Errorf("generate contact id: %w", err)
	}

	now := time.Now().UTC()
	c := Contact{
		ID:          id.String(),
		Name:        input.Name,
		Surname:     input.Surname,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		DateOfBirth: input.DateOfBirth,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, account_id, name, surname, email, phone_number, date_of_birth, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, c.ID, accountID, c.Name, c.Surname, c.Email, c.PhoneNumber, c.DateOfBirth, c.Description, c.CreatedAt)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	return c, nil
}

func (r *Repository) List(ctx context.Context, accountID string, filter ListFilter) ([]Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE account_id = $1`
	args := []any{accountID}

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		query += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Surname != "" {
		args = append(args, "%"+filter.Surname+"%")
		query += ` AND surname ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Email != "" {
		args = append(args, "%"+filter.Email+"%")
		query += ` AND email ILIKE $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	return r.queryContacts(ctx, query, args...)
}

// UpcomingBirthdays matches contacts whose birthday falls within the next
// seven days, today included. Comparison is on (month, day) so the birth
// year is irrelevant and year boundaries are handled.
func (r *Repository) UpcomingBirthdays(ctx context.Context, accountID string, from time.Time, days int) ([]Contact, error) {
	if days <= 0 {
		days = 7
	}

	args := []any{accountID}
	placeholders := make([]string, 0, days+1)
	for i := 0; i <= days; i++ {
		args = append(args, from.AddDate(0, 0, i).Format("01-02"))
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE account_id = $1
		  AND to_char(date_of_birth, 'MM-DD') IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY to_char(date_of_birth, 'MM-DD') ASC`

	return r.queryContacts(ctx, query, args...)
}

func (r *Repository) Get(ctx context.Context, accountID, id string) (Contact, error) {
	var c Contact
	err := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND account_id = $2
	`, id, accountID).Scan(&c.ID, &c.Name, &c.Surname, &c.Email, &c.PhoneNumber, &c.DateOfBirth, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Contact{}, err
		}
		return Contact{}, fmt.Errorf("query contact: %w", err)
	}

	return c, nil
}

func (r *Repository) Update(ctx context.Context, accountID, id string, input ContactInput) (Contact, error) {
	var c Contact
	err := r.db.QueryRowContext(ctx, `
		UPDATE contacts
		SET name = $3, surname = $4, email = $5, phone_number = $6, date_of_birth = $7, description = $8, updated_at = $9
		WHERE id = $1 AND account_id = $2
		RETURNING `+contactColumns+`
	`, id, accountID, input.Name, input.Surname, input.Email, input.PhoneNumber, input.DateOfBirth, input.Description, time.Now().UTC()).
		Scan(&c.ID, &c.Name, &c.Surname, &c.Email, &c.PhoneNumber, &c.DateOfBirth, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Contact{}, err
		}
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}

	return c, nil
}

func (r *Repository) Delete(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
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

func (r *Repository) queryContacts(ctx context.Context, query string, args ...any) ([]Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Surname, &c.Email, &c.PhoneNumber, &c.DateOfBirth, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, nil
}
