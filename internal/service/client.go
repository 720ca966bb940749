package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fastpay/internal/format"
	"fastpay/internal/model"
	"fastpay/internal/repository"
)

var (
	ErrManychatIDRequired   = errors.New("id_manychat is required")
	ErrClientNotFound       = errors.New("client not found")
	ErrOrderMessageRequired = errors.New("mensagem_do_pedido is required for new client registration")
	ErrNoOrderCode          = errors.New("no order code in message")
)

// UnknownOrderError is returned when a message names an order code that is
// not stored.
type UnknownOrderError struct {
	Code string
}

func (e *UnknownOrderError) Error() string {
	return "order " + e.Code + " not found"
}

type ClientStore interface {
	FindByManychatID(ctx context.Context, subscriberID string) (*model.Client, error)
	LinkManychatID(ctx context.Context, phone, subscriberID string, at time.Time) error
}

type ClientOrderStore interface {
	FindByCode(ctx context.Context, code string) (*model.Order, error)
	LatestByPhone(ctx context.Context, phone string) (*model.Order, error)
	CountByPhone(ctx context.Context, phone string) (int, error)
	SetManychatID(ctx context.Context, orderID, subscriberID string) error
}

// ClientOrder is a client together with their most recent order.
type ClientOrder struct {
	Client      *model.Client
	Order       *format.Summary
	TotalOrders int
}

// Registration is the outcome of linking a ManyChat subscriber.
type Registration struct {
	AlreadyRegistered bool
	ClientName        string
	ClientPhone       string
	OrderCode         string
	Order             *format.Summary
	TotalOrders       int
}

// ClientService resolves ManyChat subscribers to storefront clients.
type ClientService struct {
	clients   ClientStore
	orders    ClientOrderStore
	formatter format.Formatter
	extractor *format.CodeExtractor
	now       func() time.Time
}

func NewClientService(clients ClientStore, orders ClientOrderStore, prefix string) *ClientService {
	ex := format.NewCodeExtractor(prefix)
	return &ClientService{
		clients:   clients,
		orders:    orders,
		formatter: format.Formatter{Prefix: ex.Prefix()},
		extractor: ex,
		now:       time.Now,
	}
}

func (s *ClientService) Configured() bool {
	return s != nil && s.clients != nil && s.orders != nil
}

// CodePrefix is the order-code prefix messages are scanned for.
func (s *ClientService) CodePrefix() string {
	return s.extractor.Prefix()
}

// Lookup finds the client linked to subscriberID and their latest order.
// Order is nil when the client has none.
func (s *ClientService) Lookup(ctx context.Context, subscriberID string) (*ClientOrder, error) {
	if !s.Configured() {
		return nil, ErrDatabaseNotConfigured
	}
	if subscriberID == "" {
		return nil, ErrManychatIDRequired
	}

	slog.Info("client lookup", "manychat_id", subscriberID)

	c, err := s.clients.FindByManychatID(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	res := &ClientOrder{Client: c}
	res.Order, res.TotalOrders, err = s.latest(ctx, c.Phone)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Register links subscriberID to the client who placed the order named in
// message. A subscriber that is already linked gets its latest order back.
func (s *ClientService) Register(ctx context.Context, subscriberID, message string) (*Registration, error) {
	if !s.Configured() {
		return nil, ErrDatabaseNotConfigured
	}
	if subscriberID == "" {
		return nil, ErrManychatIDRequired
	}

	slog.Info("client registration", "manychat_id", subscriberID)

	existing, err := s.clients.FindByManychatID(ctx, subscriberID)
	switch {
	case err == nil:
		slog.Info("client already registered", "phone", existing.Phone)
		summary, total, err := s.latest(ctx, existing.Phone)
		if err != nil {
			return nil, err
		}
		return &Registration{
			AlreadyRegistered: true,
			ClientName:        existing.Name,
			ClientPhone:       existing.Phone,
			Order:             summary,
			TotalOrders:       total,
		}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if message == "" {
		return nil, ErrOrderMessageRequired
	}
	code, ok := s.extractor.Extract(message)
	if !ok {
		slog.Warn("could not extract order code from message", "manychat_id", subscriberID)
		return nil, ErrNoOrderCode
	}

	o, err := s.orders.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("order not found", "code", code)
			return nil, &UnknownOrderError{Code: code}
		}
		return nil, err
	}

	if err := s.clients.LinkManychatID(ctx, o.ClientPhone, subscriberID, s.now().UTC()); err != nil {
		// orders may come from phones that never became clients
		slog.Warn("link client failed", "phone", o.ClientPhone, "error", err)
	} else {
		slog.Info("client linked", "phone", o.ClientPhone, "manychat_id", subscriberID)
	}

	if err := s.orders.SetManychatID(ctx, o.ID.String(), subscriberID); err != nil {
		slog.Warn("set order manychat id failed", "order_id", o.ID.String(), "error", err)
	}

	total, err := s.orders.CountByPhone(ctx, o.ClientPhone)
	if err != nil {
		return nil, err
	}

	return &Registration{
		ClientName:  o.ClientName,
		ClientPhone: o.ClientPhone,
		OrderCode:   code,
		Order:       s.formatter.Summary(o),
		TotalOrders: total,
	}, nil
}

func (s *ClientService) latest(ctx context.Context, phone string) (*format.Summary, int, error) {
	o, err := s.orders.LatestByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	total, err := s.orders.CountByPhone(ctx, phone)
	if err != nil {
		return nil, 0, err
	}
	return s.formatter.Summary(o), total, nil
}
