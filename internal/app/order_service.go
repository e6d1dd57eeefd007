package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ovenworks/bakeshop/internal/clock"
	"github.com/ovenworks/bakeshop/internal/domain"
	"github.com/ovenworks/bakeshop/internal/metrics"
	"github.com/ovenworks/bakeshop/internal/queue"
	"go.uber.org/zap"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) (int64, error)
	GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error)
}

// JobPublisher publishes a JSON payload to the fulfillment topic.
type JobPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type OrderService struct {
	repo    OrderRepository
	jobs    JobPublisher
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.APIMetrics
}

func NewOrderService(repo OrderRepository, jobs JobPublisher, clk clock.Clock, logger *zap.Logger, m *metrics.APIMetrics) *OrderService {
	return &OrderService{
		repo:    repo,
		jobs:    jobs,
		clock:   clk,
		logger:  logger,
		metrics: m,
	}
}

type SubmitOrderInput struct {
	CustomerName  string
	CustomerEmail string
	Items         []domain.OrderItem
}

func (in SubmitOrderInput) validate() error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return domain.ErrCustomerNameRequired
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		return domain.ErrCustomerEmailRequired
	}
	if len(in.Items) == 0 {
		return domain.ErrItemsRequired
	}
	for _, item := range in.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return domain.ErrInvalidItem
		}
	}
	return nil
}

// SubmitOrder durably creates the order in status created, then
// publishes the fulfillment job. The write strictly precedes the
// publish so a consumer can always find the order it is asked to
// process. A publish failure does not fail the request: the order id
// is returned anyway and the gap is surfaced through the logs and the
// publish-failure counter.
func (s *OrderService) SubmitOrder(ctx context.Context, in SubmitOrderInput) (int64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}

	order := domain.Order{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Status:        domain.OrderStatusCreated,
		Items:         in.Items,
		CreatedAt:     s.clock.Now(),
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		id, err := s.repo.CreateOrder(txCtx, order)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.OrdersSubmitted.Inc()

	job := queue.OrderJob{EventID: uuid.NewString(), OrderID: orderID}
	if err := s.jobs.Publish(ctx, strconv.FormatInt(orderID, 10), job); err != nil {
		s.logger.Error("publish order job",
			zap.Int64("order_id", orderID),
			zap.String("event_id", job.EventID),
			zap.Error(err),
		)
		s.metrics.PublishFailures.Inc()
	}

	return orderID, nil
}

// GetStatus is a point read of the order's current status.
func (s *OrderService) GetStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	if orderID <= 0 {
		return "", domain.ErrOrderNotFound
	}
	return s.repo.GetOrderStatus(ctx, orderID)
}
