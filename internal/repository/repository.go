package repository

import (
	"context"

	"github.com/fjod/go_cart/bag-service/internal/domain"
)

// BagRepository is the session store behind the bag. A session that was never
// written loads as an empty bag and a nil purchase.
type BagRepository interface {
	Load(ctx context.Context, sessionID string) (*domain.Bag, error)
	Save(ctx context.Context, sessionID string, bag *domain.Bag) error
	// Delete drops the bag but keeps the rest of the session. Deleting a
	// missing bag is not an error.
	Delete(ctx context.Context, sessionID string) error
	Purchase(ctx context.Context, sessionID string) (*domain.Purchase, error)
	SetPurchase(ctx context.Context, sessionID string, purchase domain.Purchase) error
}
