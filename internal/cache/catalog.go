package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ovenworks/bakeshop/internal/domain"
	"github.com/redis/go-redis/v9"
)

const productsKey = "products"

// Catalog caches the product list in Redis with a bounded TTL. Errors
// are returned to the caller, which treats any failure as a miss; the
// cache must never take down a read path.
type Catalog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCatalog(client *redis.Client, ttl time.Duration) *Catalog {
	return &Catalog{client: client, ttl: ttl}
}

// GetProducts returns the cached list and whether it was present.
func (c *Catalog) GetProducts(ctx context.Context) ([]domain.Product, bool, error) {
	data, err := c.client.Get(ctx, productsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the
		// next populate.
		return nil, false, nil
	}
	return products, true, nil
}

func (c *Catalog) SetProducts(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productsKey, data, c.ttl).Err()
}
