package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fastpay/internal/model"
)

var ErrNotFound = errors.New("not found")

// Orders reads and updates fast_orders. Ids are compared as text because
// the storefront sends them as strings or numbers interchangeably.
type Orders struct {
	db *sql.DB
}

func NewOrders(db *sql.DB) *Orders {
	return &Orders{db: db}
}

const orderColumns = `
	id::text, COALESCE(order_code, ''), COALESCE(order_sequence, 0),
	COALESCE(total, 0), COALESCE(amount_paid, 0),
	COALESCE(payment_status, 'awaiting_payment'), COALESCE(items::text, '[]'),
	COALESCE(delivery_type, ''), COALESCE(scheduled_date::text, ''),
	COALESCE(scheduled_time::text, ''), COALESCE(client_name, ''),
	COALESCE(client_phone, ''), COALESCE(payment_method, ''),
	COALESCE(stripe_payment_id, ''), COALESCE(manychat_id, ''),
	COALESCE(status, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o         model.Order
		id        string
		status    string
		items     []byte
		createdAt sql.NullTime
	)
	err := row.Scan(&id, &o.OrderCode, &o.OrderSequence, &o.Total, &o.AmountPaid,
		&status, &items, &o.DeliveryType, &o.ScheduledDate, &o.ScheduledTime,
		&o.ClientName, &o.ClientPhone, &o.PaymentMethod, &o.StripePaymentID,
		&o.ManychatID, &o.Status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.ID = model.ID(id)
	o.PaymentStatus = model.PaymentStatus(status)
	o.Items = model.DecodeItems(items)
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time
	}
	return &o, nil
}

func (r *Orders) PaymentState(ctx context.Context, orderID string) (*model.PaymentState, error) {
	var (
		ps     model.PaymentState
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(total, 0), COALESCE(amount_paid, 0), COALESCE(payment_status, 'awaiting_payment')
		FROM fast_orders
		WHERE id::text = $1
	`, orderID).Scan(&ps.Total, &ps.AmountPaid, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("get payment state: %w", err)
	}
	ps.OrderID = model.ID(orderID)
	ps.PaymentStatus = model.PaymentStatus(status)
	return &ps, nil
}

func (r *Orders) UpdatePayment(ctx context.Context, orderID string, upd model.PaymentUpdate) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE fast_orders
		SET payment_status = $1, amount_paid = $2, stripe_payment_id = $3
		WHERE id::text = $4
	`, string(upd.PaymentStatus), upd.AmountPaid, upd.StripePaymentID, orderID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func (r *Orders) MarkRefunded(ctx context.Context, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE fast_orders SET payment_status = $1 WHERE id::text = $2`,
		string(model.StatusRefunded), orderID,
	)
	if err != nil {
		return fmt.Errorf("mark refunded: %w", err)
	}
	return nil
}

func (r *Orders) FindByCode(ctx context.Context, code string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM fast_orders WHERE order_code = $1 LIMIT 1`, code)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("order %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("find order by code: %w", err)
	}
	return o, nil
}

func (r *Orders) LatestByPhone(ctx context.Context, phone string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM fast_orders
		WHERE client_phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest order: %w", err)
	}
	return o, nil
}

func (r *Orders) CountByPhone(ctx context.Context, phone string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fast_orders WHERE client_phone = $1`, phone).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *Orders) SetManychatID(ctx context.Context, orderID, subscriberID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE fast_orders SET manychat_id = $1 WHERE id::text = $2`, subscriberID, orderID)
	if err != nil {
		return fmt.Errorf("set order manychat id: %w", err)
	}
	return nil
}

// Clients reads and updates fast_clients.
type Clients struct {
	db *sql.DB
}

func NewClients(db *sql.DB) *Clients {
	return &Clients{db: db}
}

func (r *Clients) FindByManychatID(ctx context.Context, subscriberID string) (*model.Client, error) {
	var (
		c         model.Client
		updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT phone, COALESCE(name, ''), COALESCE(manychat_id, ''), manychat_updated_at,
		       COALESCE(email, ''), COALESCE(birthdate::text, '')
		FROM fast_clients
		WHERE manychat_id = $1
		LIMIT 1
	`, subscriberID).Scan(&c.Phone, &c.Name, &c.ManychatID, &updatedAt, &c.Email, &c.Birthdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	if updatedAt.Valid {
		c.ManychatUpdatedAt = &updatedAt.Time
	}
	return &c, nil
}

func (r *Clients) LinkManychatID(ctx context.Context, phone, subscriberID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE fast_clients SET manychat_id = $1, manychat_updated_at = $2 WHERE phone = $3
	`, subscriberID, at, phone)
	if err != nil {
		return fmt.Errorf("link client: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("client %s: %w", phone, ErrNotFound)
	}
	return nil
}
