package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/google/uuid"
)

const customerColumns = `id, name, phone, email, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*models.Customer, error) {
	var (
		c                models.Customer
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	return &c, nil
}

func (db *DB) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	row := db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (db *DB) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	row := db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = ?`, phone)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer by phone: %w", err)
	}
	return c, nil
}

// CreateCustomer inserts customer, assigning an id and timestamps when unset.
// A duplicate phone yields domain.ErrCustomerExists.
func (db *DB) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
        INSERT INTO customers (id, name, phone, email, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Phone, customer.Email,
		toUnix(customer.CreatedAt), toUnix(customer.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.ErrCustomerExists
	}
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// ListCustomers pages through customers, newest first. search matches name,
// phone or email as a substring. The second result is the unpaged total.
func (db *DB) ListCustomers(ctx context.Context, search string, limit, offset int) ([]*models.Customer, int, error) {
	where := ""
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		where = ` WHERE name LIKE ? OR phone LIKE ? OR email LIKE ?`
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// DeleteCustomer removes the customer together with all of their appointments.
func (db *DB) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE customer_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete customer appointments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCustomerNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Info().Str("customer_id", id).Msg("customer deleted")
	return nil
}

func (db *DB) CountActiveFutureByCustomer(ctx context.Context, customerID string, now time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM appointments
        WHERE customer_id = ? AND status = 'active' AND start_at > ?`,
		customerID, toUnix(now)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count future appointments: %w", err)
	}
	return count, nil
}
