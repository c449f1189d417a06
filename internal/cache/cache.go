package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/bag-service/internal/domain"
)

// BagCache holds a read copy of each session's bag in front of the session
// store. The store stays authoritative.
type BagCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Bag, error)
	// Set stores the bag just written to the session store.
	Set(ctx context.Context, sessionID string, bag *domain.Bag) error
	// Fill stores a bag read from the session store, unless an entry is
	// already there. It reports whether it stored anything.
	Fill(ctx context.Context, sessionID string, bag *domain.Bag) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache never stores. It stands in when REDIS_ADDR is empty.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Bag, error) { return nil, ErrCacheMiss }

func (NopCache) Set(context.Context, string, *domain.Bag) error { return nil }

func (NopCache) Fill(context.Context, string, *domain.Bag) (bool, error) { return false, nil }

func (NopCache) Delete(context.Context, string) error { return nil }
