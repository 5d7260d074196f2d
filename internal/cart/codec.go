package cart

import (
	"container/list"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fjod/zapit-cart/internal/domain"
)

const stateVersion = 1

type persistedState struct {
	Version int               `json:"version"`
	Lines   []domain.CartLine `json:"lines"`
}

// Serialize encodes the lines, in order, with their snapshots. The result is
// opaque to callers and only meant for Restore.
func (s *Store) Serialize() ([]byte, error) {
	snap := s.Snapshot()
	data, err := json.Marshal(persistedState{Version: stateVersion, Lines: snap.Lines})
	if err != nil {
		return nil, fmt.Errorf("marshal cart state failed: %w", err)
	}
	return data, nil
}

// Restore replaces the whole cart with the state in blob. The blob is checked
// in full first; on error the cart is left as it was and nobody is notified.
func (s *Store) Restore(blob []byte) error {
	var st persistedState
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.Version != stateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptState, st.Version)
	}

	order := list.New()
	index := make(map[string]*list.Element, len(st.Lines))
	items := 0
	for _, cl := range st.Lines {
		if err := validateProduct(cl.ProductID, cl.Snapshot.Price, cl.Snapshot.MRP); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		if cl.Quantity < 1 {
			return fmt.Errorf("%w: quantity %d for %s", ErrCorruptState, cl.Quantity, cl.ProductID)
		}
		if cl.Quantity > math.MaxInt-items {
			return fmt.Errorf("%w: item count overflows at %s", ErrCorruptState, cl.ProductID)
		}
		items += cl.Quantity
		if _, dup := index[cl.ProductID]; dup {
			return fmt.Errorf("%w: duplicate line for %s", ErrCorruptState, cl.ProductID)
		}
		index[cl.ProductID] = order.PushBack(&line{
			productID: cl.ProductID,
			quantity:  cl.Quantity,
			snapshot:  cl.Snapshot,
		})
	}

	s.mu.Lock()
	before := s.itemCount
	s.reset(order, index)
	s.enqueue(EventRestored, "", before, s.itemCount)
	s.mu.Unlock()

	s.flush()
	return nil
}
