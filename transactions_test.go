package ripple

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/ripple/wire"
)

var testPeer = Peer{Addr: netip.MustParseAddrPort("127.0.0.1:10000")}

func newTestTransaction(schedule ...uint32) *transaction {
	return &transaction{
		peer:     testPeer,
		buf:      []byte{0x80, 0x00},
		ticks:    DefaultInitialTicks,
		schedule: schedule,
	}
}

func TestAllocateAssignsConsecutiveTIDs(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(100)
	for i := range 10 {
		tid, err := txs.allocate(newTestTransaction())
		requireT.NoError(err)
		requireT.Equal(wire.TID(100+i), tid)
	}
	requireT.Equal(10, txs.inflight())
}

func TestTIDWrapsAround(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(wire.MaxTID)

	tid, err := txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Equal(wire.MaxTID, tid)

	tid, err = txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Equal(wire.TID(0), tid)
}

func TestPendingTIDIsSkipped(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(5)
	tid, err := txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Equal(wire.TID(5), tid)

	// Simulates the counter coming back after wrapping around.
	txs.next = 5
	tid, err = txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Equal(wire.TID(6), tid)
}

func TestTooManyRequests(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	for range int(wire.MaxTID) + 1 {
		_, err := txs.allocate(newTestTransaction())
		requireT.NoError(err)
	}

	_, err := txs.allocate(newTestTransaction())
	requireT.ErrorIs(err, ErrTooManyRequests)

	_, exists := txs.match(1234)
	requireT.True(exists)
	tid, err := txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Equal(wire.TID(1234), tid)
}

func TestFreedSlotsAreReused(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	tids := make([]wire.TID, 0, 3)
	for range 3 {
		tid, err := txs.allocate(newTestTransaction())
		requireT.NoError(err)
		tids = append(tids, tid)
	}

	_, exists := txs.match(tids[1])
	requireT.True(exists)
	requireT.Equal(2, txs.inflight())

	_, err := txs.allocate(newTestTransaction())
	requireT.NoError(err)
	requireT.Len(txs.slots, 3)
	requireT.Equal(3, txs.inflight())
}

func TestMatchIsIdempotent(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	tx := newTestTransaction()
	tid, err := txs.allocate(tx)
	requireT.NoError(err)

	matched, exists := txs.match(tid)
	requireT.True(exists)
	requireT.Same(tx, matched)

	_, exists = txs.match(tid)
	requireT.False(exists)
	requireT.Zero(txs.inflight())
}

func TestDrain(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	for range 5 {
		_, err := txs.allocate(newTestTransaction())
		requireT.NoError(err)
	}
	_, exists := txs.match(2)
	requireT.True(exists)

	requireT.Len(txs.drain(), 4)
	requireT.Zero(txs.inflight())
	requireT.Empty(txs.drain())

	for _, tx := range txs.slots {
		requireT.Nil(tx)
	}
}

func TestTableInvariants(t *testing.T) {
	requireT := require.New(t)

	rnd := rand.New(rand.NewSource(1))
	txs := newTransactions(wire.MaxTID - 50)
	pending := map[wire.TID]struct{}{}
	peak := 0

	for range 2000 {
		if rnd.Intn(3) > 0 || len(pending) == 0 {
			tid, err := txs.allocate(newTestTransaction())
			requireT.NoError(err)
			_, exists := pending[tid]
			requireT.False(exists)
			pending[tid] = struct{}{}
		} else {
			for tid := range pending {
				_, exists := txs.match(tid)
				requireT.True(exists)
				delete(pending, tid)
				break
			}
		}
		peak = max(peak, len(pending))

		occupied := map[wire.TID]struct{}{}
		for pos, tx := range txs.slots {
			if tx == nil {
				continue
			}
			_, exists := occupied[tx.tid]
			requireT.False(exists)
			occupied[tx.tid] = struct{}{}
			requireT.Equal(pos, txs.index[tx.tid])
		}
		requireT.Len(occupied, txs.inflight())
		requireT.Len(pending, txs.inflight())
		requireT.LessOrEqual(len(txs.slots), peak)
	}
}

func TestTickSchedule(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	tx := newTestTransaction(DefaultBackoff...)
	_, err := txs.allocate(tx)
	requireT.NoError(err)

	var retransmittedAt []int
	expiredAt := 0
	for tick := 1; tick <= 100 && expiredAt == 0; tick++ {
		retransmit, expired := txs.tick()
		if len(retransmit) > 0 {
			requireT.Equal([]*transaction{tx}, retransmit)
			retransmittedAt = append(retransmittedAt, tick)
		}
		if len(expired) > 0 {
			requireT.Equal([]*transaction{tx}, expired)
			expiredAt = tick
		}
	}

	requireT.Equal([]int{6, 11, 20}, retransmittedAt)
	requireT.Equal(33, expiredAt)
	requireT.Equal(3, tx.retries)
	requireT.Zero(txs.inflight())
}

func TestTickWithoutRetries(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	_, err := txs.allocate(newTestTransaction())
	requireT.NoError(err)

	for range DefaultInitialTicks {
		retransmit, expired := txs.tick()
		requireT.Empty(retransmit)
		requireT.Empty(expired)
	}

	retransmit, expired := txs.tick()
	requireT.Empty(retransmit)
	requireT.Len(expired, 1)
	requireT.Zero(txs.inflight())
}

func TestTickEntriesAreIndependent(t *testing.T) {
	requireT := require.New(t)

	txs := newTransactions(0)
	tx1 := newTestTransaction()
	_, err := txs.allocate(tx1)
	requireT.NoError(err)

	txs.tick()
	txs.tick()

	tx2 := newTestTransaction()
	_, err = txs.allocate(tx2)
	requireT.NoError(err)

	for range 4 {
		txs.tick()
	}
	requireT.Equal(1, txs.inflight())
	requireT.Equal(uint32(1), tx2.ticks)

	txs.tick()
	_, expired := txs.tick()
	requireT.Equal([]*transaction{tx2}, expired)
}

func TestCompleteIsCalledOnce(t *testing.T) {
	requireT := require.New(t)

	var calls int
	tx := newTestTransaction()
	tx.request = "hello"
	tx.onComplete = func(resp Response, err error) {
		calls++
		requireT.NoError(err)
		requireT.Equal("hello", resp.Request)
		requireT.Equal(testPeer, resp.Destination)
	}

	tx.complete(Response{}, nil)
	tx.complete(Response{}, ErrCancelled)
	requireT.Equal(1, calls)
}
