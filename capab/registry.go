// Package capab assigns capability names to the bits of a msgbuf.CapMask.
//
// A Registry hands out up to 32 bits, one per capability name, in the order
// names are registered. The bits are stable for the life of the Registry:
// a capability that is withdrawn is orphaned, hidden from listings but its
// bit stays reserved so masks already held by clients keep their meaning.
package capab

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/pior/ircline/msgbuf"
)

// MaxCapabilities is the number of bits available in a msgbuf.CapMask.
const MaxCapabilities = 32

var (
	ErrRegistryFull      = errors.New("capab: no free capability bit")
	ErrInvalidName       = errors.New("capab: invalid capability name")
	ErrUnknownCapability = errors.New("capab: unknown capability")
)

type entry struct {
	name     string
	bit      msgbuf.CapMask
	orphaned bool
}

// Registry maps capability names to mask bits. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*entry
	byBit  [MaxCapabilities]*entry
	used   msgbuf.CapMask
}

// NewRegistry returns a Registry with the given capabilities registered in
// order.
func NewRegistry(names ...string) (*Registry, error) {
	r := &Registry{byName: make(map[string]*entry)}
	for _, name := range names {
		if _, err := r.Put(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put registers name and returns its bit. Registering a known name returns
// the same bit, and revives it if it was orphaned.
func (r *Registry) Put(name string) (msgbuf.CapMask, error) {
	if name == "" || strings.ContainsAny(name, " \r\n") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byName[name]; ok {
		e.orphaned = false
		return e.bit, nil
	}

	free := ^r.used
	if free == 0 {
		return 0, fmt.Errorf("%w: %q", ErrRegistryFull, name)
	}
	idx := bits.TrailingZeros32(uint32(free))

	e := &entry{name: name, bit: msgbuf.CapMask(1) << idx}
	r.byName[name] = e
	r.byBit[idx] = e
	r.used |= e.bit
	return e.bit, nil
}

// Get returns the bit of name. Orphaned capabilities are not found.
func (r *Registry) Get(name string) (msgbuf.CapMask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	if !ok || e.orphaned {
		return 0, false
	}
	return e.bit, true
}

// Mask returns the union of the bits of names.
func (r *Registry) Mask(names ...string) (msgbuf.CapMask, error) {
	var mask msgbuf.CapMask
	for _, name := range names {
		bit, ok := r.Get(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		mask |= bit
	}
	return mask, nil
}

// Orphan withdraws name. Its bit is not reused. Returns false for an unknown
// name.
func (r *Registry) Orphan(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byName[name]
	if !ok {
		return false
	}
	e.orphaned = true
	return true
}

// Names returns the capabilities in mask, in bit order. Orphaned and unknown
// bits are skipped.
func (r *Registry) Names(mask msgbuf.CapMask) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for m := uint32(mask & r.used); m != 0; m &= m - 1 {
		e := r.byBit[bits.TrailingZeros32(m)]
		if !e.orphaned {
			names = append(names, e.name)
		}
	}
	return names
}

// All returns the mask of every capability that is not orphaned.
func (r *Registry) All() msgbuf.CapMask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var mask msgbuf.CapMask
	for _, e := range r.byName {
		if !e.orphaned {
			mask |= e.bit
		}
	}
	return mask
}

// List renders the advertised capabilities separated by spaces, as sent in
// a CAP LS reply.
func (r *Registry) List() string {
	return strings.Join(r.Names(r.All()), " ")
}
