package sim

import "fmt"

// SlotID names one reservation in one store. IDs are monotone across the
// whole run; controllers and the router reference reservations by SlotID
// only, never by queue position.
type SlotID uint64

// Store is a bounded buffer of products with reservation slots.
// Invariant: occupancy + reserved <= capacity, where capacity 0 means
// unbounded. A reservation is a promise of one slot to one in-flight
// request; it survives across event steps until committed or released.
type Store struct {
	ID       string
	Capacity int // 0 = unbounded
	Location [2]float64

	// Owner is the id of the resource, source, or sink this store belongs
	// to. Link-transport matching compares owners.
	Owner string

	items    []*Product
	reserved map[SlotID]bool

	// onFree is invoked whenever capacity frees up (item removed or
	// reservation released). The router subscribes here to re-offer
	// blocked products.
	onFree func()
}

// NewStore creates an empty store.
func NewStore(id string, capacity int, location [2]float64) *Store {
	return &Store{
		ID:       id,
		Capacity: capacity,
		Location: location,
		reserved: make(map[SlotID]bool),
	}
}

// Occupancy returns the number of products physically held.
func (st *Store) Occupancy() int { return len(st.items) }

// Reserved returns the number of outstanding reservations.
func (st *Store) Reserved() int { return len(st.reserved) }

// Load returns occupancy + reserved, the router's congestion measure.
func (st *Store) Load() int { return len(st.items) + len(st.reserved) }

// CanAccept reports whether a reservation or put would succeed now.
func (st *Store) CanAccept() bool {
	return st.Capacity == 0 || st.Load() < st.Capacity
}

// SubscribeFree registers the free-capacity callback. Only one subscriber
// is supported; the simulator fans out to interested parties.
func (st *Store) SubscribeFree(fn func()) { st.onFree = fn }

// Reserve promises one slot to the given request id. Returns false when the
// store is full.
func (st *Store) Reserve(slot SlotID) bool {
	if !st.CanAccept() {
		return false
	}
	st.reserved[slot] = true
	return true
}

// HasReservation reports whether the slot is still promised in this store.
func (st *Store) HasReservation(slot SlotID) bool {
	return st.reserved[slot]
}

// Commit atomically moves the product into the reserved slot and releases
// the reservation. An unknown slot id is an engine invariant violation.
func (st *Store) Commit(slot SlotID, p *Product) {
	if !st.reserved[slot] {
		panic(fmt.Sprintf("store %s: commit of unknown reservation %d", st.ID, slot))
	}
	delete(st.reserved, slot)
	st.items = append(st.items, p)
	p.Location = st
}

// Release cancels a reservation without occupying the slot. An unknown slot
// id is an engine invariant violation.
func (st *Store) Release(slot SlotID) {
	if !st.reserved[slot] {
		panic(fmt.Sprintf("store %s: release of unknown reservation %d", st.ID, slot))
	}
	delete(st.reserved, slot)
	st.notifyFree()
}

// Put appends a product without a prior reservation. Returns false when the
// store is full. Sources use this on their output stores.
func (st *Store) Put(p *Product) bool {
	if !st.CanAccept() {
		return false
	}
	st.items = append(st.items, p)
	p.Location = st
	return true
}

// Contains reports whether the product is physically in the store.
func (st *Store) Contains(p *Product) bool {
	for _, item := range st.items {
		if item == p {
			return true
		}
	}
	return false
}

// Remove lifts the product out of the store, preserving the order of the
// remaining items. Controllers remove out of FIFO order when their policy
// says so. Removing an absent product is an engine invariant violation.
func (st *Store) Remove(p *Product) {
	for i, item := range st.items {
		if item == p {
			st.items = append(st.items[:i], st.items[i+1:]...)
			st.notifyFree()
			return
		}
	}
	panic(fmt.Sprintf("store %s: remove of absent product %s", st.ID, p.ID))
}

func (st *Store) notifyFree() {
	if st.onFree != nil {
		st.onFree()
	}
}
