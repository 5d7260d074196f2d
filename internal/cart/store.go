// Package cart holds the shared cart store every storefront surface reads and
// mutates: product cards, the product page and the cart drawer all go through
// the same Store, so none of them keeps a quantity of its own.
//
// Prices are trusted as given at add time. The store is not a pricing
// authority; re-validating prices belongs to whoever receives the checkout.
package cart

import (
	"container/list"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type line struct {
	productID string
	quantity  int
	snapshot  domain.ProductSnapshot
}

// Store is safe for concurrent use. Mutations hold the write lock for the
// whole transition, so readers never see a quantity without its total.
//
// Listeners run after the lock is released, one event at a time and in commit
// order. Whichever goroutine finds the queue idle delivers everything queued,
// including events committed meanwhile by other goroutines or by the
// listeners themselves.
type Store struct {
	mu        sync.RWMutex
	order     *list.List
	index     map[string]*list.Element
	total     decimal.Decimal
	listTotal decimal.Decimal
	itemCount int
	seq       uint64

	listeners  []*subscription
	pending    []Event
	delivering bool
}

func NewStore() *Store {
	return &Store{
		order:     list.New(),
		index:     make(map[string]*list.Element),
		total:     decimal.Zero,
		listTotal: decimal.Zero,
	}
}

// AddOne adds a single unit of p.
func (s *Store) AddOne(p domain.Product) error {
	return s.Add(p, 1)
}

// Add puts quantity units of p in the cart. An existing line is incremented and
// its snapshot replaced by p, so the latest price wins for the whole line.
func (s *Store) Add(p domain.Product, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if err := validateProduct(p.ID, p.Price, p.MRP); err != nil {
		return err
	}
	snap := p.Snapshot()

	s.mu.Lock()
	// the item count bounds every line, so this also guards the line quantity
	if quantity > math.MaxInt-s.itemCount {
		s.mu.Unlock()
		return fmt.Errorf("%w: adding %d would overflow the cart", ErrInvalidQuantity, quantity)
	}
	before := 0
	if el, ok := s.index[p.ID]; ok {
		l := el.Value.(*line)
		before = l.quantity
		s.retract(l)
		l.quantity += quantity
		l.snapshot = snap
		s.account(l)
	} else {
		l := &line{productID: p.ID, quantity: quantity, snapshot: snap}
		s.index[p.ID] = s.order.PushBack(l)
		s.account(l)
	}
	s.enqueue(EventAdded, p.ID, before, before+quantity)
	s.mu.Unlock()

	s.flush()
	return nil
}

// RemoveOne takes one unit off the product's line and drops the line when it
// reaches zero. Unknown ids are ignored.
func (s *Store) RemoveOne(productID string) {
	s.mu.Lock()
	el, ok := s.index[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	l := el.Value.(*line)
	before := l.quantity
	s.retract(l)
	l.quantity--
	if l.quantity == 0 {
		s.order.Remove(el)
		delete(s.index, productID)
	} else {
		s.account(l)
	}
	s.enqueue(EventRemovedOne, productID, before, l.quantity)
	s.mu.Unlock()

	s.flush()
}

// RemoveLine drops the product's line whatever its quantity.
func (s *Store) RemoveLine(productID string) {
	s.mu.Lock()
	el, ok := s.index[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	l := el.Value.(*line)
	s.retract(l)
	s.order.Remove(el)
	delete(s.index, productID)
	s.enqueue(EventLineRemoved, productID, l.quantity, 0)
	s.mu.Unlock()

	s.flush()
}

func (s *Store) Clear() {
	s.mu.Lock()
	if s.order.Len() == 0 {
		s.mu.Unlock()
		return
	}
	before := s.itemCount
	s.reset(list.New(), make(map[string]*list.Element))
	s.enqueue(EventCleared, "", before, 0)
	s.mu.Unlock()

	s.flush()
}

func (s *Store) QuantityOf(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if el, ok := s.index[productID]; ok {
		return el.Value.(*line).quantity
	}
	return 0
}

func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// ItemCount is the number of units across all lines.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemCount
}

// LineCount is the number of distinct products.
func (s *Store) LineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Snapshot returns a deep copy of the cart in insertion order.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.CartLine, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		l := el.Value.(*line)
		lines = append(lines, domain.CartLine{
			ProductID: l.productID,
			Quantity:  l.quantity,
			Snapshot:  l.snapshot.Clone(),
		})
	}
	return domain.Snapshot{
		Lines:     lines,
		Total:     s.total,
		Savings:   s.listTotal.Sub(s.total),
		ItemCount: s.itemCount,
		LineCount: len(lines),
	}
}

func (s *Store) account(l *line) {
	qty := decimal.NewFromInt(int64(l.quantity))
	s.total = s.total.Add(l.snapshot.Price.Mul(qty))
	s.listTotal = s.listTotal.Add(l.snapshot.ListPrice().Mul(qty))
	s.itemCount += l.quantity
}

func (s *Store) retract(l *line) {
	qty := decimal.NewFromInt(int64(l.quantity))
	s.total = s.total.Sub(l.snapshot.Price.Mul(qty))
	s.listTotal = s.listTotal.Sub(l.snapshot.ListPrice().Mul(qty))
	s.itemCount -= l.quantity
}

// reset swaps in a new line set and recomputes the running values from it.
// Caller holds the write lock.
func (s *Store) reset(order *list.List, index map[string]*list.Element) {
	s.order = order
	s.index = index
	s.total = decimal.Zero
	s.listTotal = decimal.Zero
	s.itemCount = 0
	for el := order.Front(); el != nil; el = el.Next() {
		s.account(el.Value.(*line))
	}
}

func validateProduct(id string, price, mrp decimal.Decimal) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", ErrInvalidProduct, id)
	}
	if mrp.IsNegative() {
		return fmt.Errorf("%w: negative mrp for %s", ErrInvalidProduct, id)
	}
	return nil
}
