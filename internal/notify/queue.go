package notify

import (
	"container/heap"

	"github.com/shaiso/Conduit/internal/domain"
)

// item — задача в очереди. seq сохраняет порядок постановки при равном приоритете.
type item struct {
	task domain.InteractionTask
	seq  uint64
}

// taskHeap реализует heap.Interface: меньший Priority раньше, затем FIFO.
type taskHeap []item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

var _ heap.Interface = (*taskHeap)(nil)
