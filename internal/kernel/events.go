package kernel

import "container/heap"

// source tags which of the five event streams a candidate event came from.
// The numeric order doubles as the tie-break priority spec.md §4.3.1
// requires: on equal timestamps, a snapshot is applied before a tape
// trade, before a user-limit activation, before a user-market activation,
// before a cancellation.
type source int

const (
	sourceSnapshot source = iota
	sourceTrade
	sourcePendingLimit
	sourcePendingMarket
	sourcePendingCancel
)

// candidate is one source's next head event, tagged with its timestamp so
// the five candidates can be ordered in a single min-heap — per spec.md's
// design note preferring a heap over a five-way linear scan. The heap only
// ever holds at most one entry per source: applyNext rebuilds it from the
// current head of every non-empty source each time it is called.
type candidate struct {
	timestamp uint64
	src       source
}

type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	return h[i].src < h[j].src
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*candidateHeap)(nil)
