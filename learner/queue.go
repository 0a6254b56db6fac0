package learner

import "container/heap"

// lossQueue is an indexed max-heap of regions ordered by loss. Equal losses
// are ordered by insertion: the region that entered the queue first wins.
// Updating a region keeps its insertion rank.
type lossQueue[K comparable] struct {
	heap  queueHeap[K]
	index map[K]*queueItem[K]
	seq   uint64
}

type queueItem[K comparable] struct {
	key  K
	loss float64
	seq  uint64
	pos  int
}

type queueHeap[K comparable] []*queueItem[K]

func (h queueHeap[K]) Len() int { return len(h) }

func (h queueHeap[K]) Less(i, j int) bool {
	if h[i].loss != h[j].loss {
		return h[i].loss > h[j].loss
	}

	return h[i].seq < h[j].seq
}

func (h queueHeap[K]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *queueHeap[K]) Push(x any) {
	item, _ := x.(*queueItem[K])
	item.pos = len(*h)
	*h = append(*h, item)
}

func (h *queueHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	item.pos = -1

	return item
}

func newLossQueue[K comparable]() *lossQueue[K] {
	return &lossQueue[K]{index: make(map[K]*queueItem[K])}
}

// set inserts key or updates its loss.
func (q *lossQueue[K]) set(key K, loss float64) {
	if item, ok := q.index[key]; ok {
		item.loss = loss
		heap.Fix(&q.heap, item.pos)

		return
	}

	q.seq++
	item := &queueItem[K]{key: key, loss: loss, seq: q.seq}
	q.index[key] = item
	heap.Push(&q.heap, item)
}

// remove drops key if present.
func (q *lossQueue[K]) remove(key K) {
	item, ok := q.index[key]
	if !ok {
		return
	}

	heap.Remove(&q.heap, item.pos)
	delete(q.index, key)
}

// peek returns the region with the highest loss.
func (q *lossQueue[K]) peek() (key K, loss float64, ok bool) {
	if len(q.heap) == 0 {
		return key, 0, false
	}

	return q.heap[0].key, q.heap[0].loss, true
}

func (q *lossQueue[K]) get(key K) (float64, bool) {
	item, ok := q.index[key]
	if !ok {
		return 0, false
	}

	return item.loss, true
}

func (q *lossQueue[K]) len() int {
	return len(q.heap)
}

func (q *lossQueue[K]) reset() {
	q.heap = nil
	q.index = make(map[K]*queueItem[K])
}
