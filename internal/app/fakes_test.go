package app

import (
	"context"
	"sync"
	"time"

	"github.com/ovenworks/bakeshop/internal/domain"
	"github.com/ovenworks/bakeshop/internal/queue"
)

type fakeOrderRepo struct {
	mu           sync.Mutex
	orders       map[int64]*domain.Order
	fulfillments map[int64]string
	history      map[int64][]domain.OrderStatus
	nextID       int64

	failCreate    error
	failGetStatus []error
	statusErr     error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:       map[int64]*domain.Order{},
		fulfillments: map[int64]string{},
		history:      map[int64][]domain.OrderStatus{},
		nextID:       1,
	}
}

func (r *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, order domain.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return 0, r.failCreate
	}
	id := r.nextID
	r.nextID++
	order.ID = id
	r.orders[id] = &order
	r.history[id] = append(r.history[id], order.Status)
	return id, nil
}

func (r *fakeOrderRepo) GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failGetStatus) > 0 {
		err := r.failGetStatus[0]
		r.failGetStatus = r.failGetStatus[1:]
		if err != nil {
			return "", err
		}
	}
	if r.statusErr != nil {
		return "", r.statusErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return order.Status, nil
}

func (r *fakeOrderRepo) MarkProcessing(ctx context.Context, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil
	}
	if order.Status == domain.OrderStatusCreated {
		order.Status = domain.OrderStatusProcessing
		r.history[orderID] = append(r.history[orderID], order.Status)
	}
	return nil
}

func (r *fakeOrderRepo) MarkCompleted(ctx context.Context, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil
	}
	if order.Status != domain.OrderStatusCompleted {
		order.Status = domain.OrderStatusCompleted
		r.history[orderID] = append(r.history[orderID], order.Status)
	}
	return nil
}

func (r *fakeOrderRepo) RecordFulfillment(ctx context.Context, orderID int64, eventID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fulfillments[orderID]; ok {
		return false, nil
	}
	r.fulfillments[orderID] = eventID
	return true, nil
}

func (r *fakeOrderRepo) setStatusErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusErr = err
}

func (r *fakeOrderRepo) statusOf(orderID int64) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ""
	}
	return order.Status
}

func (r *fakeOrderRepo) historyOf(orderID int64) []domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderStatus(nil), r.history[orderID]...)
}

func (r *fakeOrderRepo) fulfillmentOf(orderID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fulfillments[orderID]
}

func (r *fakeOrderRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeProductRepo struct {
	products []domain.Product
	err      error
	calls    int
}

func (r *fakeProductRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.products, nil
}

type fakeCatalogCache struct {
	products []domain.Product
	ok       bool
	getErr   error
	setErr   error

	stored  []domain.Product
	setCall bool
}

func (c *fakeCatalogCache) GetProducts(ctx context.Context) ([]domain.Product, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.products, c.ok, nil
}

func (c *fakeCatalogCache) SetProducts(ctx context.Context, products []domain.Product) error {
	c.setCall = true
	if c.setErr != nil {
		return c.setErr
	}
	c.stored = products
	return nil
}

type publishedMessage struct {
	Key     string
	Payload any
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{Key: key, Payload: payload})
	return nil
}

func (p *fakePublisher) messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.published...)
}

type fakeConsumer struct {
	mu         sync.Mutex
	deliveries []queue.Delivery
	acked      int
	inFlight   int
	overlapped bool
}

func (c *fakeConsumer) Fetch(ctx context.Context) (queue.Delivery, error) {
	c.mu.Lock()
	if len(c.deliveries) == 0 {
		c.mu.Unlock()
		<-ctx.Done()
		return queue.Delivery{}, ctx.Err()
	}
	if c.inFlight > 0 {
		c.overlapped = true
	}
	c.inFlight++
	d := c.deliveries[0]
	c.deliveries = c.deliveries[1:]
	c.mu.Unlock()
	return d, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, d queue.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked++
	c.inFlight--
	return nil
}

func (c *fakeConsumer) ackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acked
}

// overlappedFetch reports whether a delivery was ever fetched while an
// earlier one was still unacknowledged.
func (c *fakeConsumer) overlappedFetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlapped
}
