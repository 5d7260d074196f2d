package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, price string) domain.Product {
	return domain.Product{
		ID:     id,
		Name:   "Product " + id,
		Image:  "https://cdn.example/" + id + ".png",
		Weight: "500g",
		Price:  decimal.RequireFromString(price),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func lineIDs(s domain.Snapshot) []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func TestNewStore_EmptySnapshot(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	assert.NotNil(t, snap.Lines)
	assert.Empty(t, snap.Lines)
	assertDecimal(t, "0", snap.Total)
	assert.Equal(t, 0, snap.ItemCount)
	assert.Equal(t, 0, snap.LineCount)
}

func TestAdd_MergesRepeatedAdds(t *testing.T) {
	s := NewStore()
	p := product("p1", "5")

	require.NoError(t, s.Add(p, 1))
	require.NoError(t, s.Add(p, 2))

	assert.Equal(t, 3, s.QuantityOf("p1"))
	assert.Equal(t, 1, s.LineCount())
	assert.Equal(t, 3, s.ItemCount())
	assertDecimal(t, "15", s.Total())
}

func TestAddOne_EquivalentToSingleAdd(t *testing.T) {
	a := NewStore()
	b := NewStore()
	p := product("p1", "2.25")

	for i := 0; i < 4; i++ {
		require.NoError(t, a.AddOne(p))
	}
	require.NoError(t, b.Add(p, 4))

	assert.Equal(t, a.QuantityOf("p1"), b.QuantityOf("p1"))
	assert.True(t, a.Total().Equal(b.Total()))
}

func TestAdd_LatestPriceWins(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add(product("A", "10"), 1))
	require.NoError(t, s.Add(product("A", "12"), 1))

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assertDecimal(t, "12", snap.Lines[0].Snapshot.Price)
	assertDecimal(t, "24", snap.Total)
}

func TestAdd_RefreshesDisplayFields(t *testing.T) {
	s := NewStore()
	p := product("A", "10")
	require.NoError(t, s.AddOne(p))

	p.Name = "Renamed"
	p.Weight = "1kg"
	require.NoError(t, s.AddOne(p))

	snap := s.Snapshot()
	assert.Equal(t, "Renamed", snap.Lines[0].Snapshot.Name)
	assert.Equal(t, "1kg", snap.Lines[0].Snapshot.Weight)
}

func TestAdd_InvalidQuantity(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	for _, q := range []int{0, -1, -100} {
		err := s.Add(product("p1", "1"), q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}

	assert.Equal(t, 0, s.QuantityOf("p1"))
	assert.Equal(t, 0, calls)
}

func TestAdd_QuantityOverflow(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(product("p1", "1"), math.MaxInt))
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	assert.ErrorIs(t, s.AddOne(product("p1", "1")), ErrInvalidQuantity)
	assert.ErrorIs(t, s.AddOne(product("p2", "1")), ErrInvalidQuantity)

	assert.Equal(t, math.MaxInt, s.QuantityOf("p1"))
	assert.Equal(t, math.MaxInt, s.ItemCount())
	assert.Equal(t, 1, s.LineCount())
	assertDecimal(t, fmt.Sprint(math.MaxInt), s.Total())
	assert.Equal(t, 0, calls)
}

func TestAdd_InvalidProduct(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddOne(product("keep", "3")))
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	cases := map[string]domain.Product{
		"missing id":   product("", "1"),
		"blank id":     product("   ", "1"),
		"negative":     product("neg", "-1"),
		"negative mrp": {ID: "m", Price: decimal.NewFromInt(1), MRP: decimal.NewFromInt(-5)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.AddOne(p), ErrInvalidProduct)
		})
	}

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, s.LineCount())
	assertDecimal(t, "3", s.Total())
}

func TestAdd_ZeroPriceAllowed(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddOne(product("free", "0")))
	assert.Equal(t, 1, s.QuantityOf("free"))
	assertDecimal(t, "0", s.Total())
}

func TestRemoveOne_ZeroFloor(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddOne(product("P", "4")))

	s.RemoveOne("P")
	s.RemoveOne("P")

	assert.Equal(t, 0, s.QuantityOf("P"))
	assert.Empty(t, s.Snapshot().Lines)
	assertDecimal(t, "0", s.Total())
}

func TestRemoveOne_Decrements(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(product("P", "4"), 3))

	s.RemoveOne("P")

	assert.Equal(t, 2, s.QuantityOf("P"))
	assertDecimal(t, "8", s.Total())
}

func TestRemoveOne_EmptyCartIsNoop(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func(Event) { calls++ })

	s.RemoveOne("X")

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, s.LineCount())
}

func TestRemoveLine(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(product("a", "1"), 5))
	require.NoError(t, s.Add(product("b", "2"), 1))

	s.RemoveLine("a")
	s.RemoveLine("missing")

	assert.Equal(t, 0, s.QuantityOf("a"))
	assert.Equal(t, []string{"b"}, lineIDs(s.Snapshot()))
	assertDecimal(t, "2", s.Total())
	assert.Equal(t, 1, s.ItemCount())
}

func TestClear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(product("a", "1"), 5))
	require.NoError(t, s.Add(product("b", "2"), 1))

	s.Clear()

	snap := s.Snapshot()
	assert.Empty(t, snap.Lines)
	assertDecimal(t, "0", snap.Total)
	assertDecimal(t, "0", snap.Savings)
	assert.Equal(t, 0, snap.ItemCount)
}

func TestOrder_StableAcrossIncrements(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddOne(product("P1", "1")))
	require.NoError(t, s.AddOne(product("P2", "1")))
	require.NoError(t, s.AddOne(product("P1", "1")))

	assert.Equal(t, []string{"P1", "P2"}, lineIDs(s.Snapshot()))
}

func TestOrder_ReAddAppendsAtEnd(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddOne(product("P1", "1")))
	require.NoError(t, s.AddOne(product("P2", "1")))
	s.RemoveOne("P1")
	require.NoError(t, s.AddOne(product("P1", "1")))

	assert.Equal(t, []string{"P2", "P1"}, lineIDs(s.Snapshot()))
}

func TestItemCountAndLineCountAreDistinct(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(product("a", "1"), 3))
	require.NoError(t, s.Add(product("b", "1"), 2))

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.ItemCount)
	assert.Equal(t, 2, snap.LineCount)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := NewStore()
	p := product("a", "3")
	p.Extra = map[string]json.RawMessage{"time": json.RawMessage(`"10 MINS"`)}
	require.NoError(t, s.Add(p, 2))

	snap := s.Snapshot()
	snap.Lines[0].Quantity = 99
	snap.Lines[0].Snapshot.Price = decimal.NewFromInt(1000)
	snap.Lines[0].Snapshot.Extra["time"][1] = 'X'
	snap.Lines = append(snap.Lines, domain.CartLine{ProductID: "ghost", Quantity: 1})

	again := s.Snapshot()
	assert.Equal(t, 2, again.Lines[0].Quantity)
	assertDecimal(t, "3", again.Lines[0].Snapshot.Price)
	assert.Equal(t, `"10 MINS"`, string(again.Lines[0].Snapshot.Extra["time"]))
	assert.Equal(t, 1, again.LineCount)
}

func TestSnapshot_DoesNotAliasCallerProduct(t *testing.T) {
	s := NewStore()
	p := product("a", "3")
	p.Extra = map[string]json.RawMessage{"category": json.RawMessage(`"dairy"`)}
	require.NoError(t, s.AddOne(p))

	p.Extra["category"] = json.RawMessage(`"bakery"`)

	assert.Equal(t, `"dairy"`, string(s.Snapshot().Lines[0].Snapshot.Extra["category"]))
}

func TestSavings(t *testing.T) {
	s := NewStore()
	milk := product("milk", "54")
	milk.MRP = decimal.NewFromInt(60)
	bread := product("bread", "40")
	bread.MRP = decimal.NewFromInt(35) // mrp below price does not count
	require.NoError(t, s.Add(milk, 2))
	require.NoError(t, s.AddOne(bread))

	snap := s.Snapshot()
	assertDecimal(t, "12", snap.Savings)
	assertDecimal(t, "148", snap.Total)
	assert.Equal(t, int64(10), snap.Lines[0].Snapshot.Discount())
	assert.Equal(t, int64(0), snap.Lines[1].Snapshot.Discount())
}

func expectedTotal(snap domain.Snapshot) (decimal.Decimal, int) {
	total := decimal.Zero
	items := 0
	for _, l := range snap.Lines {
		total = total.Add(l.Subtotal())
		items += l.Quantity
	}
	return total, items
}

func TestTotal_MatchesLinesAfterRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	prices := []string{"0.99", "10", "12.50", "3.333", "0"}

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("p%d", rng.Intn(12))
		switch op := rng.Intn(10); {
		case op < 5:
			require.NoError(t, s.Add(product(id, prices[rng.Intn(len(prices))]), 1+rng.Intn(3)))
		case op < 8:
			s.RemoveOne(id)
		case op < 9:
			s.RemoveLine(id)
		default:
			if rng.Intn(20) == 0 {
				s.Clear()
			}
		}

		snap := s.Snapshot()
		total, items := expectedTotal(snap)
		require.True(t, total.Equal(snap.Total), "step %d: total %s, lines sum %s", i, snap.Total, total)
		require.Equal(t, items, snap.ItemCount)

		seen := make(map[string]bool, len(snap.Lines))
		for _, l := range snap.Lines {
			require.False(t, seen[l.ProductID], "duplicate line %s", l.ProductID)
			require.GreaterOrEqual(t, l.Quantity, 1)
			require.Equal(t, l.Quantity, s.QuantityOf(l.ProductID))
			seen[l.ProductID] = true
		}
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := NewStore()
	p := product("p", "2")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.AddOne(p)
				_ = s.QuantityOf("p")
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.QuantityOf("p"))
	assertDecimal(t, "1600", s.Total())
}
