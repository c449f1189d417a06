package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          string
	Title       string
	ImageURL    string
	RetailPrice decimal.Decimal
}

// Display is what the bag shows next to a line. It carries no price: a line
// keeps the price it was added at.
type Display struct {
	Title    string
	ImageURL string
}

type DeliveryOption struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Method    string
	Timeframe string
	Order     int
	Active    bool
}

// Purchase is the checkout flow's selection stored next to the bag in the
// session.
type Purchase struct {
	DeliveryID string `json:"delivery_id" bson:"delivery_id"`
}
