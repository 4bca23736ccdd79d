package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, name, phone, email, created_at, updated_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get customer: %w", err)
	}
	return c, nil
}

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get customer by phone: %w", err)
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO customers (id, name, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		customer.ID, customer.Name, customer.Phone, customer.Email, customer.CreatedAt, customer.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrCustomerExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create customer: %w", err)
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, search string, limit, offset int) ([]*models.Customer, int, error) {
	where := ""
	var args []any
	if q := strings.TrimSpace(search); q != "" {
		where = ` WHERE name ILIKE $1 OR phone LIKE $1 OR email ILIKE $1`
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count customers: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		customerColumns, where, n+1, n+2)
	rows, err := s.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// DeleteCustomer removes the customer; appointments follow through ON DELETE CASCADE.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCustomerNotFound
	}
	s.logger.Info().Str("customer_id", id).Msg("customer deleted")
	return nil
}

func (s *Store) CountActiveFutureByCustomer(ctx context.Context, customerID string, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE customer_id = $1 AND status = 'active' AND start_at > $2`,
		customerID, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count future appointments: %w", err)
	}
	return count, nil
}
