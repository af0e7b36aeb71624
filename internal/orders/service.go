package orders

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultCustomerOrderLimit = 5

// Service derives tracking views from stored orders.
type Service struct {
	repo   Repository
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(repo Repository) *Service {
	if repo == nil {
		panic("orders: repository required")
	}
	return &Service{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("support.internal.orders"),
	}
}

// Lookup returns the tracking view for orderID or ErrOrderNotFound.
func (s *Service) Lookup(ctx context.Context, orderID string) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "orders.lookup", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	view := BuildView(*order, s.now())
	return &view, nil
}

// OrderContext implements the lookup used when building prompt context.
func (s *Service) OrderContext(ctx context.Context, orderID string) (string, error) {
	view, err := s.Lookup(ctx, orderID)
	if err != nil {
		return "", err
	}
	return FormatContext(*view), nil
}

// CustomerOrders returns the newest orders of a customer as views.
func (s *Service) CustomerOrders(ctx context.Context, customerID string, limit int) ([]View, error) {
	if limit <= 0 {
		limit = defaultCustomerOrderLimit
	}
	orders, err := s.repo.CustomerOrders(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, BuildView(o, now))
	}
	return views, nil
}
