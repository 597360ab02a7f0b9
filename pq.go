package tchannel2

import (
	"container/heap"
	"fmt"
	"sync"
	"time"
)

// pqTimeItem is one entry in a sweeper's priority queue: an outOp ordered
// by its deadline (start + timeout).
type pqTimeItem struct {
	value    *outOp
	priority time.Time // the item's deadline
	index    int       // maintained by the heap.Interface methods
}

// pqTime implements heap.Interface over pqTimeItems, soonest deadline at
// the root (index 0), per container/heap's convention that index 0 holds
// the minimum element. pop()/peek() must go through heap.Pop and index 0,
// never the tail -- the heap invariant only orders parent-to-child, so the
// soonest deadline can otherwise sit anywhere in the slice.
type pqTime []*pqTimeItem

// pq is a priority queue of outOps ordered by deadline, behind a mutex for
// goroutine safety. Each Connection's sweeper uses one, holding that
// connection's outbound operations only.
type pq struct {
	mut sync.Mutex
	hea pqTime
}

func newPQ() *pq {
	return &pq{}
}

// "public" goroutine-safe interface, mutex protected:

func (p *pq) size() (sz int) {
	p.mut.Lock()
	defer p.mut.Unlock()
	sz = len(p.hea)
	return
}

func (p *pq) pop() *pqTimeItem {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.hea.pop()
}

func (p *pq) peek() (op *outOp) {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.hea.peek()
}

// add a new item to the queue.
func (p *pq) add(op *outOp) *pqTimeItem {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.hea.add(op)
}

func (p *pq) delOneItem(item *pqTimeItem) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.hea.delOneItem(item)
}

// update modifies the value stored at item and re-establishes heap order
// against its (possibly changed) deadline.
func (p *pq) update(item *pqTimeItem, value *outOp) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.hea.update(item, value)
}

// expired pops every item whose deadline is <= now, oldest-first, and
// returns them. Used by the sweeper to collect timed-out outOps in one
// pass without repeated lock/unlock per item.
func (p *pq) expired(now time.Time) []*outOp {
	p.mut.Lock()
	defer p.mut.Unlock()
	var out []*outOp
	for len(p.hea) > 0 {
		top := p.hea.peek()
		if top == nil || top.when().After(now) {
			break
		}
		item := p.hea.pop()
		out = append(out, item.value)
	}
	return out
}

// private, unlocked heap.Interface impl:

func (pq pqTime) Len() int { return len(pq) }

func (pq pqTime) Less(i, j int) bool {
	// soonest deadline sorts first, so it ends up at the root (index 0).
	return pq[i].priority.Before(pq[j].priority)
}

func (pq pqTime) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pqTime) Push(x any) {
	n := len(*pq)
	item := x.(*pqTimeItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pqTime) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// pop removes and returns the soonest-deadline item via heap.Pop, which
// swaps the root to the tail, re-heapifies the remainder, then truncates --
// a bare tail-read-and-truncate (the prior implementation) would remove an
// arbitrary leaf instead of the minimum.
func (pq *pqTime) pop() *pqTimeItem {
	if len(*pq) == 0 {
		return nil
	}
	return heap.Pop(pq).(*pqTimeItem)
}

func (pq *pqTime) size() int {
	return len(*pq)
}

// peek returns the soonest-deadline item without removing it: the root,
// index 0, per the heap invariant -- not the tail.
func (pq *pqTime) peek() (op *outOp) {
	if len(*pq) == 0 {
		return nil
	}
	return (*pq)[0].value
}

// add a new item to the queue.
func (pq *pqTime) add(op *outOp) *pqTimeItem {
	n := len(*pq)
	item := &pqTimeItem{
		priority: op.when(),
		value:    op,
		index:    n,
	}
	*pq = append(*pq, item)
	heap.Fix(pq, n)
	return item
}

func (pq *pqTime) delOneItem(item *pqTimeItem) {
	old := *pq
	n := len(old)
	if n == 0 {
		panic("cannot delete from empty pq")
	}
	i := item.index
	if i < 0 || i >= n {
		panic(fmt.Sprintf("bad index %v on item to delete: '%v'", item.index, item.value))
	}
	if i < n-1 {
		old.Swap(i, n-1)
	}
	item.index = -1
	old[n-1] = nil
	*pq = old[0 : n-1]
	if i < n-1 {
		heap.Fix(pq, i)
	}
}

// update modifies the value and deadline of an item already in the queue.
func (pq *pqTime) update(item *pqTimeItem, value *outOp) {
	item.value = value
	item.priority = value.when()
	heap.Fix(pq, item.index)
}
