package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// SessionKey is the session key the bag blob is stored under.
const SessionKey = "bag"

type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Record is the persisted shape of one line. The price travels as a decimal
// string.
type Record struct {
	Price string `json:"price" bson:"price"`
	Qty   int    `json:"qty" bson:"qty"`
}

// Bag maps product IDs to line items. It is not safe for concurrent use; each
// request works on its own copy.
type Bag struct {
	lines map[string]LineItem
}

func NewBag() *Bag {
	return &Bag{lines: make(map[string]LineItem)}
}

// Has reports whether productID has a line.
func (b *Bag) Has(productID string) bool {
	_, ok := b.lines[productID]
	return ok
}

func (b *Bag) Get(productID string) (LineItem, bool) {
	l, ok := b.lines[productID]
	return l, ok
}

// Insert stores a new line or replaces an existing one.
func (b *Bag) Insert(item LineItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if b.lines == nil {
		b.lines = make(map[string]LineItem)
	}
	b.lines[item.ProductID] = item
	return nil
}

// SetQuantity overwrites the quantity of an existing line and keeps its price.
// It returns false when productID has no line.
func (b *Bag) SetQuantity(productID string, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrInvalidQuantity
	}
	l, ok := b.lines[productID]
	if !ok {
		return false, nil
	}
	l.Quantity = qty
	b.lines[productID] = l
	return true, nil
}

// Remove deletes the line for productID and reports whether there was one.
func (b *Bag) Remove(productID string) bool {
	if _, ok := b.lines[productID]; !ok {
		return false
	}
	delete(b.lines, productID)
	return true
}

// Len is the number of distinct lines.
func (b *Bag) Len() int {
	return len(b.lines)
}

// ItemCount is the sum of quantities over all lines.
func (b *Bag) ItemCount() int {
	n := 0
	for _, l := range b.lines {
		n += l.Quantity
	}
	return n
}

func (b *Bag) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ProductIDs returns the product IDs in ascending order.
func (b *Bag) ProductIDs() []string {
	ids := make([]string, 0, len(b.lines))
	for id := range b.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lines returns a copy of the lines ordered by product ID.
func (b *Bag) Lines() []LineItem {
	out := make([]LineItem, 0, len(b.lines))
	for _, id := range b.ProductIDs() {
		out = append(out, b.lines[id])
	}
	return out
}

func (b *Bag) Clone() *Bag {
	c := &Bag{lines: make(map[string]LineItem, len(b.lines))}
	for id, l := range b.lines {
		c.lines[id] = l
	}
	return c
}

func (b *Bag) Records() map[string]Record {
	out := make(map[string]Record, len(b.lines))
	for id, l := range b.lines {
		out[id] = Record{Price: l.UnitPrice.String(), Qty: l.Quantity}
	}
	return out
}

// BagFromRecords rebuilds a bag from its persisted shape. A nil map yields an
// empty bag.
func BagFromRecords(records map[string]Record) (*Bag, error) {
	b := NewBag()
	for id, r := range records {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", id, err)
		}
		if err := b.Insert(LineItem{ProductID: id, UnitPrice: price, Quantity: r.Qty}); err != nil {
			return nil, fmt.Errorf("invalid line for product %s: %w", id, err)
		}
	}
	return b, nil
}

func (b *Bag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Records())
}

func (b *Bag) UnmarshalJSON(data []byte) error {
	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	restored, err := BagFromRecords(records)
	if err != nil {
		return err
	}
	b.lines = restored.lines
	return nil
}
