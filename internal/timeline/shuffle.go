package timeline

import (
	"fmt"
	"math/rand"
)

// ShuffleOrder is a permutation of window indices used for shuffled navigation.
type ShuffleOrder struct {
	shuffled        []int
	indexInShuffled []int
}

// NewShuffleOrder creates a shuffle order from a permutation of [0, len(perm)).
func NewShuffleOrder(perm []int) (*ShuffleOrder, error) {
	indexInShuffled := make([]int, len(perm))
	for i := range indexInShuffled {
		indexInShuffled[i] = IndexUnset
	}
	for i, p := range perm {
		if p < 0 || p >= len(perm) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidShuffleOrder, p)
		}
		if indexInShuffled[p] != IndexUnset {
			return nil, fmt.Errorf("%w: index %d appears twice", ErrInvalidShuffleOrder, p)
		}
		indexInShuffled[p] = i
	}
	shuffled := make([]int, len(perm))
	copy(shuffled, perm)
	return &ShuffleOrder{shuffled: shuffled, indexInShuffled: indexInShuffled}, nil
}

// NewRandomShuffleOrder creates a shuffle order over n windows. The same seed always
// produces the same order.
func NewRandomShuffleOrder(n int, seed int64) *ShuffleOrder {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	order, _ := NewShuffleOrder(perm) // a Perm result is always valid
	return order
}

// Len returns the number of indices in the order.
func (o *ShuffleOrder) Len() int {
	return len(o.shuffled)
}

// First returns the first index of the order, or IndexUnset when empty.
func (o *ShuffleOrder) First() int {
	if len(o.shuffled) == 0 {
		return IndexUnset
	}
	return o.shuffled[0]
}

// Last returns the last index of the order, or IndexUnset when empty.
func (o *ShuffleOrder) Last() int {
	if len(o.shuffled) == 0 {
		return IndexUnset
	}
	return o.shuffled[len(o.shuffled)-1]
}

// Next returns the index following index in the order, or IndexUnset at the end.
func (o *ShuffleOrder) Next(index int) int {
	pos := o.indexInShuffled[index] + 1
	if pos < len(o.shuffled) {
		return o.shuffled[pos]
	}
	return IndexUnset
}

// Previous returns the index preceding index in the order, or IndexUnset at the start.
func (o *ShuffleOrder) Previous(index int) int {
	pos := o.indexInShuffled[index] - 1
	if pos >= 0 {
		return o.shuffled[pos]
	}
	return IndexUnset
}

// Indices returns a copy of the shuffled indices.
func (o *ShuffleOrder) Indices() []int {
	out := make([]int, len(o.shuffled))
	copy(out, o.shuffled)
	return out
}
