package domain

// Product is a catalog entry. The catalog is read-heavy and served
// through a cache-aside layer; orders reference products by id only.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	InStock     bool
}
