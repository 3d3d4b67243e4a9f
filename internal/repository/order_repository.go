package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
)

const (
	EventOrderCreated = "order_created"
	EventOrderPaid    = "order_paid"
)

// CreateFromCart is the checkout transaction: order insert, one row per
// order item, cart emptied (items and totals zeroed, guarded by the revision
// the caller snapshotted from) and the order_created outbox row. Any failure
// rolls the whole thing back.
func (r *Repository) CreateFromCart(ctx context.Context, order *domain.Order, cartID uuid.UUID, cartRevision int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback()

	addrJSON, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		order.ID,
		order.UserID,
		addrJSON,
		order.PaymentMethod,
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.TotalPrice)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, slug, image, price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID,
			item.ProductID,
			item.Name,
			item.Slug,
			item.Image,
			item.Price,
			item.Quantity)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	zero := money.Zero().Round2()
	result, err := tx.ExecContext(ctx,
		`UPDATE carts
		 SET items = '[]', items_price = $1, shipping_price = $1, tax_price = $1, total_price = $1,
		     revision = revision + 1, updated_at = NOW()
		 WHERE id = $2 AND revision = $3`,
		zero, cartID, cartRevision)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if n, e2 := result.RowsAffected(); e2 != nil {
		return fmt.Errorf("clear cart rows affected: %w", e2)
	} else if n == 0 {
		return ErrRevisionConflict
	}

	if err := insertOutboxEvent(ctx, tx, order.ID.String(), EventOrderCreated, orderEventPayload(order)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price,
	                 is_paid, paid_at, is_delivered, delivered_at, payment_result, created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var addrJSON []byte
	var resultJSON []byte
	var paidAt, deliveredAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&addrJSON,
		&order.PaymentMethod,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&resultJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := json.Unmarshal(addrJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(resultJSON) > 0 {
		order.PaymentResult = &domain.PaymentResult{}
		if err := json.Unmarshal(resultJSON, order.PaymentResult); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}

	items, err := r.orderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *Repository) orderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, name, slug, image, price, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Slug, &item.Image, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order item iteration: %w", err)
	}
	return items, nil
}

// SetPaymentResult records the pending intent binding. Guarded on is_paid so
// a late reconciliation can never overwrite a settled payment.
func (r *Repository) SetPaymentResult(ctx context.Context, orderID uuid.UUID, result domain.PaymentResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal payment result: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_result = $1, updated_at = NOW() WHERE id = $2 AND is_paid = FALSE`,
		resultJSON, orderID)
	if err != nil {
		return fmt.Errorf("set payment result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkPaid is a compare-and-set: the is_paid = FALSE condition makes webhook
// redelivery a no-op instead of a second transition. The order_paid outbox
// row commits together with the flip.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin paid transaction: %w", err)
	}
	defer tx.Rollback()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal payment result: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $1, payment_result = $2, updated_at = NOW()
		 WHERE id = $3 AND is_paid = FALSE`,
		paidAt, resultJSON, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark paid rows affected: %w", err)
	}
	if n == 0 {
		// Already paid, or no such order. Distinguish so redelivery for a
		// real order stays a clean no-op.
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return false, fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return false, ErrOrderNotFound
		}
		return false, nil
	}

	if err := insertOutboxEvent(ctx, tx, orderID.String(), EventOrderPaid, paidEventPayload(orderID, result, paidAt)); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit paid transaction: %w", err)
	}
	return true, nil
}

func orderEventPayload(order *domain.Order) map[string]interface{} {
	return map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      order.UserID,
		"total_price":  order.TotalPrice,
		"item_count":   len(order.Items),
		"payment_kind": order.PaymentMethod,
	}
}

func paidEventPayload(orderID uuid.UUID, result domain.PaymentResult, paidAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"order_id":     orderID,
		"provider_ref": result.ProviderRef,
		"amount_paid":  result.AmountPaid,
		"paid_at":      paidAt,
	}
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, payloadJSON)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
