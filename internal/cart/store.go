// Package cart is an explicit state container for client cart and wishlist
// state. All mutation goes through Dispatch so the reducer stays the single
// source of transition logic, and persistence sits behind a small interface
// instead of a package-level singleton.
package cart

import (
	"errors"
	"sync"
)

type Line struct {
	ListingID string  `json:"listing_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type State struct {
	Items    map[string]Line `json:"items"`
	Wishlist map[string]bool `json:"wishlist"`
}

func emptyState() State {
	return State{
		Items:    map[string]Line{},
		Wishlist: map[string]bool{},
	}
}

func (s State) clone() State {
	out := State{
		Items:    make(map[string]Line, len(s.Items)),
		Wishlist: make(map[string]bool, len(s.Wishlist)),
	}
	for k, v := range s.Items {
		out.Items[k] = v
	}
	for k, v := range s.Wishlist {
		out.Wishlist[k] = v
	}
	return out
}

type ActionType string

const (
	AddItem        ActionType = "ADD_ITEM"
	RemoveItem     ActionType = "REMOVE_ITEM"
	SetQuantity    ActionType = "SET_QUANTITY"
	ClearCart      ActionType = "CLEAR_CART"
	ToggleWishlist ActionType = "TOGGLE_WISHLIST"
)

type Action struct {
	Type      ActionType
	ListingID string
	Title     string
	Quantity  int
	UnitPrice float64
}

// Reduce is pure: it never mutates prev.
func Reduce(prev State, a Action) State {
	next := prev.clone()
	switch a.Type {
	case AddItem:
		line, ok := next.Items[a.ListingID]
		if ok {
			line.Quantity += max(1, a.Quantity)
		} else {
			line = Line{
				ListingID: a.ListingID,
				Title:     a.Title,
				Quantity:  max(1, a.Quantity),
				UnitPrice: a.UnitPrice,
			}
		}
		next.Items[a.ListingID] = line
	case RemoveItem:
		delete(next.Items, a.ListingID)
	case SetQuantity:
		if a.Quantity <= 0 {
			delete(next.Items, a.ListingID)
			break
		}
		if line, ok := next.Items[a.ListingID]; ok {
			line.Quantity = a.Quantity
			next.Items[a.ListingID] = line
		}
	case ClearCart:
		next.Items = map[string]Line{}
	case ToggleWishlist:
		if next.Wishlist[a.ListingID] {
			delete(next.Wishlist, a.ListingID)
		} else {
			next.Wishlist[a.ListingID] = true
		}
	}
	return next
}

// Persistence abstracts the storage medium (browser local storage on the
// client, a session record server-side).
type Persistence interface {
	Load() (State, error)
	Save(State) error
}

var ErrUnknownAction = errors.New("unknown cart action")

type Store struct {
	mu    sync.RWMutex
	state State
	p     Persistence
}

func NewStore(p Persistence) (*Store, error) {
	st := emptyState()
	if p != nil {
		loaded, err := p.Load()
		if err != nil {
			return nil, err
		}
		if loaded.Items != nil {
			st.Items = loaded.Items
		}
		if loaded.Wishlist != nil {
			st.Wishlist = loaded.Wishlist
		}
	}
	return &Store{state: st, p: p}, nil
}

func (s *Store) Dispatch(a Action) (State, error) {
	switch a.Type {
	case AddItem, RemoveItem, SetQuantity, ClearCart, ToggleWishlist:
	default:
		return State{}, ErrUnknownAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := Reduce(s.state, a)
	if s.p != nil {
		if err := s.p.Save(next); err != nil {
			return State{}, err
		}
	}
	s.state = next
	return next.clone(), nil
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subtotal prices the current cart.
func (s *Store) Subtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum float64
	for _, line := range s.state.Items {
		sum += line.UnitPrice * float64(line.Quantity)
	}
	return sum
}
