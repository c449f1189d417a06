package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/cache"
	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/fjod/go_cart/bag-service/internal/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Catalog is what the bag reads from the product catalog and the delivery
// pricing table.
type Catalog interface {
	LookupPrice(ctx context.Context, productID string) (decimal.Decimal, error)
	LookupDisplays(ctx context.Context, productIDs []string) (map[string]domain.Display, error)
	LookupDeliveryFee(ctx context.Context, deliveryID string) (decimal.Decimal, error)
	ListDeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error)
}

// Line is a stored line enriched with live display data.
type Line struct {
	ProductID string
	Title     string
	ImageURL  string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

// Listing is one pass over the bag. Skipped counts lines whose product no
// longer resolves in the catalog; they are still part of the bag.
type Listing struct {
	Lines   []Line
	Skipped int
}

type Summary struct {
	ItemCount int
	Subtotal  decimal.Decimal
	Delivery  decimal.Decimal
	Total     decimal.Decimal
}

// BagService owns the bag of every session. Each call loads its own copy of
// the bag; two concurrent writers for one session race and the last save wins.
type BagService struct {
	repo    repository.BagRepository
	cache   cache.BagCache
	catalog Catalog
	sfg     singleflight.Group // Prevents cache stampede
}

func NewBagService(repo repository.BagRepository, cache cache.BagCache, catalog Catalog) *BagService {
	return &BagService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
	}
}

func (s *BagService) load(ctx context.Context, sessionID string) (*domain.Bag, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (any, error) {
		bag, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return bag, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", slog.String("session_id", sessionID), slog.Any("error", err))
		}

		bag, err = s.repo.Load(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
		}

		if _, err := s.cache.Fill(ctx, sessionID, bag); err != nil {
			slog.WarnContext(ctx, "cache fill error", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return bag, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share a bag
	return v.(*domain.Bag).Clone(), nil
}

func (s *BagService) save(ctx context.Context, sessionID string, bag *domain.Bag) error {
	if err := s.repo.Save(ctx, sessionID, bag); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
	}

	if err := s.cache.Set(ctx, sessionID, bag); err != nil {
		slog.WarnContext(ctx, "cache set error", slog.String("session_id", sessionID), slog.Any("error", err))
		invalidateCache(s, sessionID)
	}
	return nil
}

// Add puts qty of productID in the bag. The product must still be in the
// catalog. A product already in the bag gets its quantity replaced and keeps
// its price; a new one is priced from the catalog.
func (s *BagService) Add(ctx context.Context, sessionID, productID string, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	price, err := s.catalog.LookupPrice(ctx, productID)
	if err != nil {
		return err
	}

	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	found, err := bag.SetQuantity(productID, qty)
	if err != nil {
		return err
	}
	if !found {
		if err := bag.Insert(domain.LineItem{ProductID: productID, UnitPrice: price, Quantity: qty}); err != nil {
			return err
		}
	}

	return s.save(ctx, sessionID, bag)
}

// Update overwrites the quantity of a line already in the bag. Unknown
// products are ignored.
func (s *BagService) Update(ctx context.Context, sessionID, productID string, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	found, err := bag.SetQuantity(productID, qty)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return s.save(ctx, sessionID, bag)
}

func (s *BagService) Delete(ctx context.Context, sessionID, productID string) error {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	if !bag.Remove(productID) {
		return nil
	}

	return s.save(ctx, sessionID, bag)
}

// Clear removes the bag from the session. Clearing an empty or unknown
// session succeeds.
func (s *BagService) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
	}

	invalidateCache(s, sessionID)
	return nil
}

// Items lists the bag ordered by product ID. Every call reads the current
// state and never writes it.
func (s *BagService) Items(ctx context.Context, sessionID string) (*Listing, error) {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Lines: make([]Line, 0, bag.Len())}
	if bag.Len() == 0 {
		return listing, nil
	}

	displays, err := s.catalog.LookupDisplays(ctx, bag.ProductIDs())
	if err != nil {
		return nil, err
	}

	for _, l := range bag.Lines() {
		d, ok := displays[l.ProductID]
		if !ok {
			listing.Skipped++
			continue
		}
		listing.Lines = append(listing.Lines, Line{
			ProductID: l.ProductID,
			Title:     d.Title,
			ImageURL:  d.ImageURL,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal(),
		})
	}

	if listing.Skipped > 0 {
		slog.InfoContext(ctx, "bag lines no longer in catalog",
			slog.String("session_id", sessionID),
			slog.Int("skipped", listing.Skipped))
	}
	return listing, nil
}

func (s *BagService) ItemCount(ctx context.Context, sessionID string) (int, error) {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return bag.ItemCount(), nil
}

func (s *BagService) Subtotal(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return bag.Subtotal(), nil
}

// DeliveryPrice is the fee of the session's selected delivery option. No
// selection, or a selection the catalog no longer knows, costs nothing.
func (s *BagService) DeliveryPrice(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	purchase, err := s.repo.Purchase(ctx, sessionID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
	}
	if purchase == nil || purchase.DeliveryID == "" {
		return decimal.Zero, nil
	}

	fee, err := s.catalog.LookupDeliveryFee(ctx, purchase.DeliveryID)
	if errors.Is(err, domain.ErrDeliveryOptionNotFound) {
		slog.WarnContext(ctx, "selected delivery option not found",
			slog.String("session_id", sessionID),
			slog.String("delivery_id", purchase.DeliveryID))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return fee, nil
}

func (s *BagService) Total(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	summary, err := s.Summary(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Total, nil
}

// Summary reads the bag once and prices it with the selected delivery.
func (s *BagService) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	delivery, err := s.DeliveryPrice(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return summarize(bag, delivery), nil
}

// Quote prices the bag as if deliveryID were selected, without recording the
// selection.
func (s *BagService) Quote(ctx context.Context, sessionID, deliveryID string) (*Summary, error) {
	bag, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	fee, err := s.catalog.LookupDeliveryFee(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	return summarize(bag, fee), nil
}

// SelectDelivery records deliveryID as the session's delivery option.
func (s *BagService) SelectDelivery(ctx context.Context, sessionID, deliveryID string) error {
	if _, err := s.catalog.LookupDeliveryFee(ctx, deliveryID); err != nil {
		return err
	}

	if err := s.repo.SetPurchase(ctx, sessionID, domain.Purchase{DeliveryID: deliveryID}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSessionUnavailable, err)
	}
	return nil
}

func (s *BagService) DeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error) {
	return s.catalog.ListDeliveryOptions(ctx)
}

func summarize(bag *domain.Bag, delivery decimal.Decimal) *Summary {
	subtotal := bag.Subtotal()
	return &Summary{
		ItemCount: bag.ItemCount(),
		Subtotal:  subtotal,
		Delivery:  delivery,
		Total:     subtotal.Add(delivery),
	}
}

func invalidateCache(s *BagService, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		slog.Warn("cache invalidate error", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}
