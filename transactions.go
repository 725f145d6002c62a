package ripple

import (
	"net/netip"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/outofforest/ripple/wire"
)

// Peer describes the remote endpoint. TID and IsRequest are set on peers of inbound frames.
type Peer struct {
	Addr      netip.AddrPort
	TID       wire.TID
	IsRequest bool
}

func (p Peer) String() string {
	return p.Addr.String()
}

// Response is the result of request.
type Response struct {
	// Value is the decoded response.
	Value any

	// Peer is the sender of the response.
	Peer Peer

	// Request is the value sent in the request.
	Request any

	// Destination is the peer request was sent to.
	Destination Peer
}

// CompletionFn receives the result of request. It is called exactly once.
type CompletionFn func(resp Response, err error)

type transaction struct {
	tid        wire.TID
	request    any
	peer       Peer
	buf        []byte
	ticks      uint32
	retries    int
	schedule   []uint32
	onComplete CompletionFn
	done       atomic.Bool
}

func (tx *transaction) complete(resp Response, err error) {
	if !tx.done.CompareAndSwap(false, true) {
		return
	}
	resp.Request = tx.request
	resp.Destination = tx.peer
	if tx.onComplete != nil {
		tx.onComplete(resp, err)
	}
}

// transactions stores pending requests. Slots are kept in the arena and freed positions are reused
// before the arena grows, so it never exceeds the peak number of requests in flight.
type transactions struct {
	next  wire.TID
	slots []*transaction
	index map[wire.TID]int
	free  []int
}

func newTransactions(seed wire.TID) *transactions {
	return &transactions{
		next:  seed & wire.MaxTID,
		index: map[wire.TID]int{},
	}
}

// allocate assigns transaction ID and stores the transaction. IDs still pending after the counter
// wrapped around are skipped.
func (t *transactions) allocate(tx *transaction) (wire.TID, error) {
	if len(t.index) > int(wire.MaxTID) {
		return 0, errors.WithStack(ErrTooManyRequests)
	}

	tid := t.next
	for {
		if _, exists := t.index[tid]; !exists {
			break
		}
		tid = (tid + 1) & wire.MaxTID
	}
	t.next = (tid + 1) & wire.MaxTID

	var pos int
	if n := len(t.free); n > 0 {
		pos = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		pos = len(t.slots)
		t.slots = append(t.slots, nil)
	}

	tx.tid = tid
	t.slots[pos] = tx
	t.index[tid] = pos
	return tid, nil
}

// match removes and returns the transaction.
func (t *transactions) match(tid wire.TID) (*transaction, bool) {
	pos, exists := t.index[tid]
	if !exists {
		return nil, false
	}

	tx := t.slots[pos]
	t.slots[pos] = nil
	t.free = append(t.free, pos)
	delete(t.index, tid)
	return tx, true
}

// drain removes all the transactions.
func (t *transactions) drain() []*transaction {
	txs := make([]*transaction, 0, len(t.index))
	for pos, tx := range t.slots {
		if tx == nil {
			continue
		}
		txs = append(txs, tx)
		t.slots[pos] = nil
		t.free = append(t.free, pos)
	}
	clear(t.index)
	return txs
}

// tick advances countdowns of all the transactions. It returns transactions to retransmit
// and expired ones. Expired transactions are removed.
func (t *transactions) tick() (retransmit, expired []*transaction) {
	for _, tx := range t.slots {
		switch {
		case tx == nil:
		case tx.ticks > 0:
			tx.ticks--
		case tx.retries < len(tx.schedule):
			tx.ticks = tx.schedule[tx.retries]
			tx.retries++
			retransmit = append(retransmit, tx)
		default:
			expired = append(expired, tx)
		}
	}

	for _, tx := range expired {
		t.match(tx.tid)
	}
	return retransmit, expired
}

func (t *transactions) inflight() int {
	return len(t.index)
}
