package ripple

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
)

func (s *Socket) runScheduler(ctx context.Context) error {
	log := logger.Get(ctx)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closedCh:
			return nil
		case <-ctx.Done():
			if s.isDestroyed() {
				return nil
			}
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
			s.tick(log)
		}
	}
}

// tick retransmits and expires pending requests. Transactions are sent and completed after the
// lock is released so completion might issue new requests.
func (s *Socket) tick(log *zap.Logger) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	tr := s.tr
	retransmit, expired := s.txs.tick()
	s.mu.Unlock()

	for _, tx := range retransmit {
		log.Debug("Retransmitting request",
			zap.Stringer("peer", tx.peer),
			zap.Uint16("tid", uint16(tx.tid)),
			zap.Int("retry", tx.retries))

		if err := tr.Send(tx.peer.Addr, tx.buf); err != nil && !s.isDestroyed() {
			s.reportTransportError(log, err)
		}
	}
	for _, tx := range expired {
		log.Debug("Request timed out",
			zap.Stringer("peer", tx.peer),
			zap.Uint16("tid", uint16(tx.tid)))

		tx.complete(Response{}, errors.WithStack(ErrTimeout))
	}
}
