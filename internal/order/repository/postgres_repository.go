package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ridloal/e-commerce-go-checkout/internal/order/domain"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/database"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order id already exists")
)

// OrderRepository tidak punya jalur update untuk amount, items atau payment_method.
// Perubahan state hanya lewat compare-and-swap.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	// CompareAndSwapState mengganti state from→to secara atomik. Jika state saat ini bukan from,
	// swapped=false dan current berisi state yang sebenarnya. gatewayRef nil = tidak diubah.
	CompareAndSwapState(ctx context.Context, orderID string, from, to domain.PaymentState, gatewayRef *string) (swapped bool, current domain.PaymentState, err error)
	// DeleteIfState menghapus order hanya jika state-nya masih sama dengan state.
	DeleteIfState(ctx context.Context, orderID string, state domain.PaymentState) (deleted bool, current domain.PaymentState, err error)
	SetGatewayReference(ctx context.Context, orderID, ref string) error
	// FillPaidGatewayReference mengisi gateway reference order PAID yang belum punya reference.
	FillPaidGatewayReference(ctx context.Context, orderID, ref string) (filled bool, err error)
	ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// RecordNotification menyimpan audit notifikasi; recorded=false jika notifikasi yang sama sudah ada.
	RecordNotification(ctx context.Context, n *domain.PaymentNotification) (recorded bool, err error)
}

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) OrderRepository {
	return &postgresOrderRepository{db: db}
}

const orderColumns = `id, user_id, items, address, amount, delivery_charge, payment_method, payment_state, gateway_reference, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o          domain.Order
		itemsJSON  []byte
		addrJSON   []byte
		gatewayRef sql.NullString
	)
	if err := row.Scan(&o.ID, &o.UserID, &itemsJSON, &addrJSON, &o.Amount, &o.DeliveryCharge,
		&o.PaymentMethod, &o.PaymentState, &gatewayRef, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(addrJSON, &o.Address); err != nil {
		return nil, fmt.Errorf("decode address of order %s: %w", o.ID, err)
	}
	if gatewayRef.Valid {
		ref := gatewayRef.String
		o.GatewayReference = &ref
	}
	return &o, nil
}

func (r *postgresOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	addrJSON, err := json.Marshal(order.Address)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.PaymentState == "" {
		order.PaymentState = domain.StatePending
	}

	query := `INSERT INTO orders (` + orderColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query, order.ID, order.UserID, itemsJSON, addrJSON, order.Amount,
		order.DeliveryCharge, order.PaymentMethod, order.PaymentState, order.GatewayReference, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		logger.Error("CreateOrder: insert failed", err, logger.Fields{"order_id": order.ID})
		return err
	}
	return nil
}

func (r *postgresOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		logger.Error("GetOrderByID: scan failed", err, logger.Fields{"order_id": orderID})
		return nil, err
	}
	return o, nil
}

func (r *postgresOrderRepository) currentState(ctx context.Context, orderID string) (domain.PaymentState, error) {
	var st domain.PaymentState
	err := r.db.QueryRowContext(ctx, `SELECT payment_state FROM orders WHERE id = $1`, orderID).Scan(&st)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", err
	}
	return st, nil
}

func (r *postgresOrderRepository) CompareAndSwapState(ctx context.Context, orderID string, from, to domain.PaymentState, gatewayRef *string) (bool, domain.PaymentState, error) {
	query := `UPDATE orders
              SET payment_state = $3, gateway_reference = COALESCE($4, gateway_reference), updated_at = NOW()
              WHERE id = $1 AND payment_state = $2`
	res, err := r.db.ExecContext(ctx, query, orderID, from, to, gatewayRef)
	if err != nil {
		logger.Error("CompareAndSwapState: exec failed", err, logger.Fields{"order_id": orderID, "from": from, "to": to})
		return false, "", err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, to, nil
	}

	current, err := r.currentState(ctx, orderID)
	if err != nil {
		return false, "", err
	}
	return false, current, nil
}

func (r *postgresOrderRepository) DeleteIfState(ctx context.Context, orderID string, state domain.PaymentState) (bool, domain.PaymentState, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND payment_state = $2`, orderID, state)
	if err != nil {
		logger.Error("DeleteIfState: exec failed", err, logger.Fields{"order_id": orderID})
		return false, "", err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, state, nil
	}

	current, err := r.currentState(ctx, orderID)
	if err != nil {
		return false, "", err
	}
	return false, current, nil
}

// SetGatewayReference hanya berlaku selama order masih PENDING.
func (r *postgresOrderRepository) SetGatewayReference(ctx context.Context, orderID, ref string) error {
	query := `UPDATE orders SET gateway_reference = $2, updated_at = NOW() WHERE id = $1 AND payment_state = $3`
	res, err := r.db.ExecContext(ctx, query, orderID, ref, domain.StatePending)
	if err != nil {
		logger.Error("SetGatewayReference: exec failed", err, logger.Fields{"order_id": orderID})
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresOrderRepository) FillPaidGatewayReference(ctx context.Context, orderID, ref string) (bool, error) {
	query := `UPDATE orders SET gateway_reference = $2, updated_at = NOW()
              WHERE id = $1 AND payment_state = $3 AND gateway_reference IS NULL`
	res, err := r.db.ExecContext(ctx, query, orderID, ref, domain.StatePaid)
	if err != nil {
		logger.Error("FillPaidGatewayReference: exec failed", err, logger.Fields{"order_id": orderID})
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *postgresOrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *postgresOrderRepository) ListOrders(ctx context.Context, filter domain.ListOrdersFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		args = append(args, pq.Array(states))
		where = append(where, fmt.Sprintf("payment_state = ANY($%d)", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		logger.Error("ListOrders: query failed", err)
		return nil, err
	}
	return orders, nil
}

func (r *postgresOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	orders, err := r.queryOrders(ctx, query, userID)
	if err != nil {
		logger.Error("ListOrdersByUser: query failed", err, logger.Fields{"user_id": userID})
		return nil, err
	}
	return orders, nil
}

func (r *postgresOrderRepository) RecordNotification(ctx context.Context, n *domain.PaymentNotification) (bool, error) {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now().UTC()
	}
	query := `INSERT INTO payment_notifications (order_id, payment_method, gateway_reference, gateway_status, received_at)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (order_id, gateway_reference, gateway_status) DO NOTHING
              RETURNING id`
	err := r.db.QueryRowContext(ctx, query, n.OrderID, n.PaymentMethod, n.GatewayReference, n.GatewayStatus, n.ReceivedAt).Scan(&n.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		logger.Error("RecordNotification: insert failed", err, logger.Fields{"order_id": n.OrderID})
		return false, err
	}
	return true, nil
}
