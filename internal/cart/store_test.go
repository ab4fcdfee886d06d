package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memPersistence struct {
	saved   []State
	loadSt  State
	loadErr error
	saveErr error
}

func (m *memPersistence) Load() (State, error) { return m.loadSt, m.loadErr }
func (m *memPersistence) Save(s State) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, s)
	return nil
}

func TestReduceIsPure(t *testing.T) {
	prev := emptyState()
	prev.Items["l-1"] = Line{ListingID: "l-1", Quantity: 1, UnitPrice: 100}

	next := Reduce(prev, Action{Type: SetQuantity, ListingID: "l-1", Quantity: 5})

	assert.Equal(t, 1, prev.Items["l-1"].Quantity)
	assert.Equal(t, 5, next.Items["l-1"].Quantity)
}

func TestReduceAddItem(t *testing.T) {
	st := Reduce(emptyState(), Action{Type: AddItem, ListingID: "l-1", Title: "Beaded necklace", Quantity: 2, UnitPrice: 800})
	assert.Equal(t, 2, st.Items["l-1"].Quantity)

	// Adding the same listing again accumulates quantity.
	st = Reduce(st, Action{Type: AddItem, ListingID: "l-1", Quantity: 1})
	assert.Equal(t, 3, st.Items["l-1"].Quantity)
	assert.Equal(t, "Beaded necklace", st.Items["l-1"].Title)

	// Zero quantity still adds one unit.
	st = Reduce(st, Action{Type: AddItem, ListingID: "l-2", Title: "Soapstone bowl", UnitPrice: 1500})
	assert.Equal(t, 1, st.Items["l-2"].Quantity)
}

func TestReduceSetQuantityToZeroRemoves(t *testing.T) {
	st := Reduce(emptyState(), Action{Type: AddItem, ListingID: "l-1", Quantity: 2, UnitPrice: 100})
	st = Reduce(st, Action{Type: SetQuantity, ListingID: "l-1", Quantity: 0})
	assert.NotContains(t, st.Items, "l-1")
}

func TestReduceRemoveAndClear(t *testing.T) {
	st := Reduce(emptyState(), Action{Type: AddItem, ListingID: "l-1", Quantity: 1})
	st = Reduce(st, Action{Type: AddItem, ListingID: "l-2", Quantity: 1})
	st = Reduce(st, Action{Type: ToggleWishlist, ListingID: "l-9"})

	st = Reduce(st, Action{Type: RemoveItem, ListingID: "l-1"})
	assert.NotContains(t, st.Items, "l-1")
	assert.Contains(t, st.Items, "l-2")

	st = Reduce(st, Action{Type: ClearCart})
	assert.Empty(t, st.Items)
	// Clearing the cart leaves the wishlist alone.
	assert.True(t, st.Wishlist["l-9"])
}

func TestReduceToggleWishlist(t *testing.T) {
	st := Reduce(emptyState(), Action{Type: ToggleWishlist, ListingID: "l-1"})
	assert.True(t, st.Wishlist["l-1"])
	st = Reduce(st, Action{Type: ToggleWishlist, ListingID: "l-1"})
	assert.NotContains(t, st.Wishlist, "l-1")
}

func TestStoreDispatchPersists(t *testing.T) {
	p := &memPersistence{loadSt: emptyState()}
	s, err := NewStore(p)
	assert.NoError(t, err)

	st, err := s.Dispatch(Action{Type: AddItem, ListingID: "l-1", Quantity: 2, UnitPrice: 800})
	assert.NoError(t, err)
	assert.Len(t, p.saved, 1)
	assert.Equal(t, st.Items, p.saved[0].Items)
}

func TestStoreDispatchSaveFailureKeepsState(t *testing.T) {
	p := &memPersistence{loadSt: emptyState(), saveErr: errors.New("disk full")}
	s, err := NewStore(p)
	assert.NoError(t, err)

	_, err = s.Dispatch(Action{Type: AddItem, ListingID: "l-1", Quantity: 1})
	assert.Error(t, err)
	assert.Empty(t, s.State().Items)
}

func TestStoreDispatchUnknownAction(t *testing.T) {
	s, err := NewStore(nil)
	assert.NoError(t, err)

	_, err = s.Dispatch(Action{Type: "TELEPORT"})
	assert.Equal(t, ErrUnknownAction, err)
}

func TestStoreLoadsPersistedState(t *testing.T) {
	loaded := emptyState()
	loaded.Items["l-1"] = Line{ListingID: "l-1", Quantity: 3, UnitPrice: 250}
	s, err := NewStore(&memPersistence{loadSt: loaded})
	assert.NoError(t, err)

	assert.Equal(t, 3, s.State().Items["l-1"].Quantity)
	assert.Equal(t, 750.0, s.Subtotal())
}

func TestStoreLoadError(t *testing.T) {
	_, err := NewStore(&memPersistence{loadErr: errors.New("corrupt session")})
	assert.Error(t, err)
}
