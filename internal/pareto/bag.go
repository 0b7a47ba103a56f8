// Package pareto holds a mutable Pareto frontier.
//
// A Bag keeps only mutually non-dominated elements visible. Dominated elements
// are flagged and kept in place until Prune compacts the slice, so repeated
// dominance checks against a provisional frontier stay cheap.
//
// Elements must not change their Compare results while they are in a Bag.
package pareto

import "iter"

// Comparison is the outcome of comparing x against y.
type Comparison int

const (
	// Incomparable: each side is better in some dimension.
	Incomparable Comparison = iota
	// Dominates: x is no worse anywhere and strictly better somewhere.
	Dominates
	// Dominated: y dominates x.
	Dominated
	// Equal: identical in every dimension.
	Equal
)

func (c Comparison) String() string {
	switch c {
	case Dominates:
		return "dominates"
	case Dominated:
		return "dominated"
	case Equal:
		return "equal"
	default:
		return "incomparable"
	}
}

// Element is anything a Bag can hold.
type Element[E any] interface {
	comparable
	Compare(other E) Comparison
}

type slot[E any] struct {
	value     E
	dominated bool
}

// Bag is a Pareto frontier over E. The zero value is an empty bag.
type Bag[E Element[E]] struct {
	slots []slot[E]
}

// New returns an empty bag with room for n elements.
func New[E Element[E]](n int) *Bag[E] {
	return &Bag[E]{slots: make([]slot[E], 0, n)}
}

// AddOnly inserts el unless a visible element dominates or equals it. Visible
// elements dominated by el are flagged but stay in the slice until Prune.
func (b *Bag[E]) AddOnly(el E) bool {
	var beaten []int
	for i := range b.slots {
		s := &b.slots[i]
		if s.dominated {
			continue
		}
		switch el.Compare(s.value) {
		case Dominated, Equal:
			return false
		case Dominates:
			beaten = append(beaten, i)
		}
	}
	for _, i := range beaten {
		b.slots[i].dominated = true
	}
	b.slots = append(b.slots, slot[E]{value: el})
	return true
}

// Prune removes flagged elements and returns how many were dropped.
func (b *Bag[E]) Prune() int {
	kept := b.slots[:0]
	for _, s := range b.slots {
		if !s.dominated {
			kept = append(kept, s)
		}
	}
	removed := len(b.slots) - len(kept)
	var zero slot[E]
	for i := len(kept); i < len(b.slots); i++ {
		b.slots[i] = zero
	}
	b.slots = kept
	return removed
}

// Add is AddOnly followed by Prune.
func (b *Bag[E]) Add(el E) (added bool, pruned int) {
	added = b.AddOnly(el)
	return added, b.Prune()
}

// Merge adds every visible element of other, then prunes once.
func (b *Bag[E]) Merge(other *Bag[E]) (added, pruned int) {
	if other == nil {
		return 0, 0
	}
	for el := range other.All() {
		if b.AddOnly(el) {
			added++
		}
	}
	return added, b.Prune()
}

// UpdateOnly puts next into the slot held by old and rechecks it against every
// other visible slot. It reports false when old is not in the bag.
func (b *Bag[E]) UpdateOnly(old, next E) bool {
	idx := -1
	for i := range b.slots {
		if b.slots[i].value == old {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	b.slots[idx] = slot[E]{value: next}
	for i := range b.slots {
		if i == idx || b.slots[i].dominated {
			continue
		}
		switch next.Compare(b.slots[i].value) {
		case Dominates:
			b.slots[i].dominated = true
		case Dominated, Equal:
			b.slots[idx].dominated = true
		}
		if b.slots[idx].dominated {
			break
		}
	}
	return true
}

// Update is UpdateOnly followed by Prune.
func (b *Bag[E]) Update(old, next E) (bool, int) {
	ok := b.UpdateOnly(old, next)
	return ok, b.Prune()
}

// UpdateAll replaces every visible element with fn(el) and recomputes the
// frontier among the replacements only, so no replacement is checked against
// a value that is about to change. Returns how many replacements lost.
func (b *Bag[E]) UpdateAll(fn func(E) E) int {
	next := make([]E, 0, len(b.slots))
	for el := range b.All() {
		next = append(next, fn(el))
	}
	clear(b.slots)
	b.slots = b.slots[:0]
	for _, el := range next {
		b.AddOnly(el)
	}
	rejected := len(next) - len(b.slots)
	return rejected + b.Prune()
}

// All yields the visible elements in insertion order.
func (b *Bag[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		if b == nil {
			return
		}
		for _, s := range b.slots {
			if s.dominated {
				continue
			}
			if !yield(s.value) {
				return
			}
		}
	}
}

// Items returns a snapshot of the visible elements.
func (b *Bag[E]) Items() []E {
	if b == nil {
		return nil
	}
	out := make([]E, 0, len(b.slots))
	for el := range b.All() {
		out = append(out, el)
	}
	return out
}

// Len counts visible elements.
func (b *Bag[E]) Len() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, s := range b.slots {
		if !s.dominated {
			n++
		}
	}
	return n
}

// Clone returns a bag holding the same visible elements.
func (b *Bag[E]) Clone() *Bag[E] {
	out := New[E](b.Len())
	for el := range b.All() {
		out.slots = append(out.slots, slot[E]{value: el})
	}
	return out
}
