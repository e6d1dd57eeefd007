package domain

import "errors"

var (
	ErrCustomerNameRequired  = errors.New("customer_name is required")
	ErrCustomerEmailRequired = errors.New("customer_email is required")
	ErrItemsRequired         = errors.New("at least one item is required")
	ErrInvalidItem           = errors.New("each item must have a product_id and quantity > 0")
	ErrOrderNotFound         = errors.New("order not found")
)
