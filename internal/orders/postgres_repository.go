package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads orders from the orders table.
type PostgresRepository struct {
	db pgQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db pgQuerier) *PostgresRepository {
	if db == nil {
		panic("orders: querier required")
	}
	return &PostgresRepository{db: db}
}

const orderColumns = `order_id, customer_id, status, items, subtotal, shipping_cost, tax, total,
		payment_method, payment_status, tracking, created_at, updated_at, shipped_at, delivered_at`

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE upper(order_id) = $1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, strings.ToUpper(orderID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("orders: select failed: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) CustomerOrders(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("orders: list failed: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan failed: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: list failed: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		status        string
		items         []byte
		tracking      []byte
		paymentMethod *string
		paymentStatus *string
	)
	if err := row.Scan(
		&o.OrderID,
		&o.CustomerID,
		&status,
		&items,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Tax,
		&o.Total,
		&paymentMethod,
		&paymentStatus,
		&tracking,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ShippedAt,
		&o.DeliveredAt,
	); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if paymentMethod != nil {
		o.PaymentMethod = *paymentMethod
	}
	if paymentStatus != nil {
		o.PaymentStatus = *paymentStatus
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(tracking) > 0 && string(tracking) != "null" {
		o.Tracking = &TrackingInfo{}
		if err := json.Unmarshal(tracking, o.Tracking); err != nil {
			return nil, fmt.Errorf("decode tracking: %w", err)
		}
	}
	return &o, nil
}
