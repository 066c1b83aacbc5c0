package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"arrears/internal/domain"
	"arrears/internal/errors"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, tx *sql.Tx, order *domain.Order) (uint, error) {
	query := `
		INSERT INTO Orders (placedBy, accountKind, amountDue, status, placedAt, paymentDueAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		order.PlacedBy, order.AccountKind, order.AmountDue, order.Status,
		order.PlacedAt, order.PaymentDueAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	query := `
		SELECT id, placedBy, accountKind, amountDue, status,
		       placedAt, paymentDueAt, paidAt, createdAt, updatedAt
		FROM Orders
		WHERE id = ?
	`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.PlacedBy, &order.AccountKind, &order.AmountDue, &order.Status,
		&order.PlacedAt, &order.PaymentDueAt, &order.PaidAt,
		&order.CreatedAt, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return &order, nil
}

// FindByIDForUpdate locks the order row for the duration of the transaction
// so the status check and the conditional update read the same state.
func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error) {
	query := `
		SELECT id, placedBy, accountKind, amountDue, status,
		       placedAt, paymentDueAt, paidAt, createdAt, updatedAt
		FROM Orders
		WHERE id = ?
		FOR UPDATE
	`

	var order domain.Order
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.PlacedBy, &order.AccountKind, &order.AmountDue, &order.Status,
		&order.PlacedAt, &order.PaymentDueAt, &order.PaidAt,
		&order.CreatedAt, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order for update: %w", err)
	}

	return &order, nil
}

// MarkPaid flips the order to PAID, conditioned on it still being settleable.
func (r *MySQLOrderRepository) MarkPaid(ctx context.Context, tx *sql.Tx, id uint, paidAt time.Time) error {
	query := `
		UPDATE Orders
		SET status = ?, paidAt = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		domain.OrderStatusPaid, paidAt, id,
		domain.OrderStatusPending, domain.OrderStatusOverdue,
	)
	if err != nil {
		return fmt.Errorf("marking order paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewAlreadySettledError(fmt.Sprintf("order %d is no longer payable", id))
	}

	return nil
}

func (r *MySQLOrderRepository) MarkCancelled(ctx context.Context, tx *sql.Tx, id uint) error {
	query := `
		UPDATE Orders
		SET status = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		domain.OrderStatusCancelled, id,
		domain.OrderStatusPending, domain.OrderStatusOverdue,
	)
	if err != nil {
		return fmt.Errorf("marking order cancelled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewAlreadySettledError(fmt.Sprintf("order %d is no longer cancellable", id))
	}

	return nil
}

// MarkOverdue flips a still-pending order to OVERDUE. Reports false when the
// order got settled or cancelled since it was selected, which the sweep
// treats as a skip.
func (r *MySQLOrderRepository) MarkOverdue(ctx context.Context, tx *sql.Tx, id uint) (bool, error) {
	query := `UPDATE Orders SET status = ? WHERE id = ? AND status = ?`

	result, err := tx.ExecContext(ctx, query, domain.OrderStatusOverdue, id, domain.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("marking order overdue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// FindExpiredPendingForUpdate selects company orders whose payment window
// elapsed before asOf, locking them for the sweep. SKIP LOCKED keeps
// concurrent sweeps from serializing on the same rows.
func (r *MySQLOrderRepository) FindExpiredPendingForUpdate(ctx context.Context, tx *sql.Tx, asOf time.Time, limit int) ([]domain.Order, error) {
	query := `
		SELECT id, placedBy, accountKind, amountDue, status,
		       placedAt, paymentDueAt, paidAt, createdAt, updatedAt
		FROM Orders
		WHERE accountKind = ?
		  AND status = ?
		  AND paymentDueAt IS NOT NULL
		  AND paymentDueAt < ?
		ORDER BY paymentDueAt ASC, id ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.QueryContext(ctx, query, domain.AccountKindCompany, domain.OrderStatusPending, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("querying expired pending orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// ListReceivables returns open company orders carrying a payment obligation,
// ordered by due date then id so pagination stays stable.
func (r *MySQLOrderRepository) ListReceivables(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `
		SELECT id, placedBy, accountKind, amountDue, status,
		       placedAt, paymentDueAt, paidAt, createdAt, updatedAt
		FROM Orders
		WHERE accountKind = ?
		  AND status IN (?, ?)
		ORDER BY paymentDueAt ASC, id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		domain.AccountKindCompany, domain.OrderStatusPending, domain.OrderStatusOverdue, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying receivables: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *MySQLOrderRepository) ListByAccount(ctx context.Context, placedBy string) ([]domain.Order, error) {
	query := `
		SELECT id, placedBy, accountKind, amountDue, status,
		       placedAt, paymentDueAt, paidAt, createdAt, updatedAt
		FROM Orders
		WHERE placedBy = ?
		ORDER BY placedAt DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, placedBy)
	if err != nil {
		return nil, fmt.Errorf("querying orders by account: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		err := rows.Scan(
			&order.ID, &order.PlacedBy, &order.AccountKind, &order.AmountDue, &order.Status,
			&order.PlacedAt, &order.PaymentDueAt, &order.PaidAt,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return orders, nil
}
