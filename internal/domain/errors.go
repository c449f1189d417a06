package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrDeliveryOptionNotFound = errors.New("delivery option not found")
	ErrSessionUnavailable     = errors.New("session store unavailable")
	ErrCatalogUnavailable     = errors.New("catalog unavailable")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
)
