package decoder

import (
	"errors"
	"fmt"

	"github.com/ieee0824/wordlattice/internal/mathutil"
)

// ErrNoCapacity is returned for a histogram pruning bound below one.
var ErrNoCapacity = errors.New("decoder: hypothesis heap needs room for at least one element")

// InsertStatus is the outcome of HypHeap.Insert. Statuses from Inserted on
// mean the hypothesis is stored.
type InsertStatus uint8

const (
	RejectBeam InsertStatus = iota
	RejectNoReplace
	RejectFull
	Inserted
	Replaced
)

// Accepted reports whether the hypothesis was stored.
func (s InsertStatus) Accepted() bool { return s >= Inserted }

func (s InsertStatus) String() string {
	switch s {
	case RejectBeam:
		return "reject_beam"
	case RejectNoReplace:
		return "reject_no_replace"
	case RejectFull:
		return "reject_full"
	case Inserted:
		return "insert"
	case Replaced:
		return "replace"
	default:
		return fmt.Sprintf("InsertStatus(%d)", uint8(s))
	}
}

type heapNode struct {
	hyp    Hyp
	key    hypKey
	bucket uint64
	pos    int   // position in HypHeap.heap, 0 when detached
	next   int32 // next slot in the bucket chain, -1 ends it
}

// HypHeap is the per-frame working set of the search. It keeps at most one
// hypothesis per search state, at most maxElements hypotheses overall and
// none below the running maximum minus the beam.
//
// Slots live in an arena that is emptied wholesale by Clear. The min-heap
// over the slots is only built once the arena fills up; until then new
// slots are appended unordered.
type HypHeap struct {
	nodes   []heapNode
	free    []int32
	heap    []int32 // 1-indexed
	buckets []int32
	mask    uint64
	isHeap  bool

	maxElements int
	beam        float64
	max         float64
	limit       float64
}

// NewHypHeap creates a heap holding at most maxElements hypotheses within
// beam of the best one.
func NewHypHeap(maxElements int, beam float64) (*HypHeap, error) {
	if maxElements < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoCapacity, maxElements)
	}
	nb := 16
	for nb < 2*maxElements && nb < 1<<20 {
		nb <<= 1
	}
	hh := &HypHeap{
		nodes:       make([]heapNode, 0, maxElements),
		heap:        make([]int32, 1, maxElements+1),
		buckets:     make([]int32, nb),
		mask:        uint64(nb - 1),
		maxElements: maxElements,
		beam:        beam,
	}
	hh.Clear()
	return hh, nil
}

// Clear removes every hypothesis and resets the beam.
func (hh *HypHeap) Clear() {
	hh.nodes = hh.nodes[:0]
	hh.free = hh.free[:0]
	hh.heap = hh.heap[:1]
	for i := range hh.buckets {
		hh.buckets[i] = -1
	}
	hh.isHeap = false
	hh.max = mathutil.LogZero
	hh.limit = mathutil.LogZero
}

// Insert offers h to the heap.
func (hh *HypHeap) Insert(h *Hyp) InsertStatus {
	final := h.Prob.Final
	if final < hh.limit {
		return RejectBeam
	}
	if final > hh.max {
		hh.max = final
		hh.limit = hh.max - hh.beam
	}

	k := h.key()
	bucket := k.hash() & hh.mask
	if i := hh.find(bucket, k); i >= 0 {
		n := &hh.nodes[i]
		if final <= n.hyp.Prob.Final {
			return RejectNoReplace
		}
		n.hyp = *h
		if hh.isHeap {
			hh.siftDown(n.pos)
		}
		return Replaced
	}

	if hh.Len() < hh.maxElements {
		i := hh.alloc()
		hh.nodes[i] = heapNode{hyp: *h, key: k, bucket: bucket, pos: len(hh.heap)}
		hh.heap = append(hh.heap, i)
		hh.link(i)
		if hh.isHeap {
			hh.siftUp(hh.nodes[i].pos)
		}
		return Inserted
	}

	// full: make room by evicting the minimum when h beats it
	hh.build()
	i := hh.heap[1]
	if final <= hh.nodes[i].hyp.Prob.Final {
		return RejectFull
	}
	hh.unlink(i)
	hh.nodes[i] = heapNode{hyp: *h, key: k, bucket: bucket, pos: 1}
	hh.link(i)
	hh.siftDown(1)
	return Inserted
}

// Pop removes the hypothesis at the back of the heap array. That is not
// necessarily the best one; callers drain the heap completely.
func (hh *HypHeap) Pop() (Hyp, bool) {
	n := len(hh.heap) - 1
	if n == 0 {
		return Hyp{}, false
	}
	i := hh.heap[n]
	hh.heap = hh.heap[:n]
	hh.unlink(i)
	hh.nodes[i].pos = 0
	hh.free = append(hh.free, i)
	return hh.nodes[i].hyp, true
}

// Len returns the number of stored hypotheses.
func (hh *HypHeap) Len() int { return len(hh.heap) - 1 }

// Cap returns the histogram pruning bound.
func (hh *HypHeap) Cap() int { return hh.maxElements }

// Empty reports whether the heap holds no hypothesis.
func (hh *HypHeap) Empty() bool { return hh.Len() == 0 }

// Limit returns the lowest score Insert currently accepts.
func (hh *HypHeap) Limit() float64 { return hh.limit }

// Max returns the best score offered since the last Clear.
func (hh *HypHeap) Max() float64 { return hh.max }

// Beam returns the beam width.
func (hh *HypHeap) Beam() float64 { return hh.beam }

// Min returns the lowest stored score, or LogZero when empty. It builds the
// heap if needed.
func (hh *HypHeap) Min() float64 {
	if hh.Empty() {
		return mathutil.LogZero
	}
	hh.build()
	return hh.nodes[hh.heap[1]].hyp.Prob.Final
}

// Lookup returns the stored hypothesis competing for the same search state
// as h.
func (hh *HypHeap) Lookup(h *Hyp) (Hyp, bool) {
	k := h.key()
	if i := hh.find(k.hash()&hh.mask, k); i >= 0 {
		return hh.nodes[i].hyp, true
	}
	return Hyp{}, false
}

func (hh *HypHeap) alloc() int32 {
	if n := len(hh.free); n > 0 {
		i := hh.free[n-1]
		hh.free = hh.free[:n-1]
		return i
	}
	hh.nodes = append(hh.nodes, heapNode{})
	return int32(len(hh.nodes) - 1)
}

func (hh *HypHeap) find(bucket uint64, k hypKey) int32 {
	for i := hh.buckets[bucket]; i >= 0; i = hh.nodes[i].next {
		if hh.nodes[i].key == k {
			return i
		}
	}
	return -1
}

func (hh *HypHeap) link(i int32) {
	b := hh.nodes[i].bucket
	hh.nodes[i].next = hh.buckets[b]
	hh.buckets[b] = i
}

func (hh *HypHeap) unlink(i int32) {
	b := hh.nodes[i].bucket
	prev := int32(-1)
	for j := hh.buckets[b]; j >= 0; j = hh.nodes[j].next {
		if j == i {
			if prev < 0 {
				hh.buckets[b] = hh.nodes[j].next
			} else {
				hh.nodes[prev].next = hh.nodes[j].next
			}
			hh.nodes[i].next = -1
			return
		}
		prev = j
	}
}

func (hh *HypHeap) less(a, b int) bool {
	return hh.nodes[hh.heap[a]].hyp.Prob.Final < hh.nodes[hh.heap[b]].hyp.Prob.Final
}

func (hh *HypHeap) swap(a, b int) {
	hh.heap[a], hh.heap[b] = hh.heap[b], hh.heap[a]
	hh.nodes[hh.heap[a]].pos = a
	hh.nodes[hh.heap[b]].pos = b
}

func (hh *HypHeap) siftUp(p int) {
	for p > 1 && hh.less(p, p/2) {
		hh.swap(p, p/2)
		p /= 2
	}
}

func (hh *HypHeap) siftDown(p int) {
	n := hh.Len()
	for {
		child := 2 * p
		if child > n {
			return
		}
		if child < n && hh.less(child+1, child) {
			child++
		}
		if !hh.less(child, p) {
			return
		}
		hh.swap(p, child)
		p = child
	}
}

func (hh *HypHeap) build() {
	if hh.isHeap {
		return
	}
	for p := hh.Len() / 2; p >= 1; p-- {
		hh.siftDown(p)
	}
	hh.isHeap = true
}
