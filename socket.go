package ripple

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/ripple/transport"
	"github.com/outofforest/ripple/wire"
)

// RequestOptions overrides socket configuration for single request.
type RequestOptions struct {
	// Retry overrides Config.Retry.
	Retry *bool
}

// WithRetry returns options enabling or disabling retransmissions of the request.
func WithRetry(retry bool) RequestOptions {
	return RequestOptions{Retry: &retry}
}

// Socket sends requests and responses over UDP and matches responses to pending requests.
type Socket struct {
	config Config

	mu        sync.Mutex
	txs       *transactions
	tr        transport.Transport
	log       *zap.Logger
	destroyed bool
	readyCh   chan struct{}
	closedCh  chan struct{}
	doneCh    chan struct{}

	running      atomic.Bool
	eventMu      sync.RWMutex
	eventsClosed bool
	eventCh      chan any
}

// New creates new socket. Events are delivered to the returned channel, which is closed when Run
// returns. Events are dropped if channel is full.
func New(config Config) (*Socket, <-chan any, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, nil, err
	}

	seed, err := randomTID()
	if err != nil {
		return nil, nil, err
	}

	eventCh := make(chan any, config.EventBuffer)
	return &Socket{
		config:   config,
		txs:      newTransactions(seed),
		log:      zap.NewNop(),
		readyCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
		eventCh:  eventCh,
	}, eventCh, nil
}

// Listen binds the socket. Port 0 selects an ephemeral port. Port is ignored if Config.Conn is set.
func (s *Socket) Listen(ctx context.Context, port uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errors.Wrap(ErrCancelled, "socket destroyed")
	}
	if s.tr != nil {
		return errors.New("socket is already listening")
	}

	return s.listen(logger.Get(ctx), port)
}

func (s *Socket) listen(log *zap.Logger, port uint16) error {
	var tr transport.Transport
	if s.config.Conn != nil {
		tr = transport.Borrow(s.config.Conn)
	} else {
		var err error
		tr, err = transport.Listen(s.config.Network, port)
		if err != nil {
			log.Error("Binding socket failed", zap.Uint16("port", port), zap.Error(err))
			s.emit(log, FatalError{Err: err})
			return err
		}
	}

	addr := tr.LocalAddr()
	s.tr = tr
	s.log = log.With(zap.Stringer("addr", addr))
	close(s.readyCh)

	s.log.Debug("Socket is listening")
	s.emit(s.log, Ready{Addr: addr})
	return nil
}

// Run receives datagrams and retransmits pending requests until socket is destroyed or context
// is canceled. Canceling the context destroys the socket.
func (s *Socket) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("socket is already running")
	}
	defer func() {
		s.Destroy(nil)
		<-s.doneCh
		s.closeEvents()
	}()

	select {
	case <-s.readyCh:
	case <-s.closedCh:
		return nil
	case <-ctx.Done():
		s.Destroy(nil)
		return errors.WithStack(ctx.Err())
	}

	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Exit, func(ctx context.Context) error {
			return s.runReceiver(ctx, tr)
		})
		spawn("scheduler", parallel.Exit, s.runScheduler)
		spawn("closer", parallel.Exit, func(ctx context.Context) error {
			select {
			case <-s.closedCh:
				return nil
			case <-ctx.Done():
				if s.isDestroyed() {
					return nil
				}
				s.Destroy(nil)
				return errors.WithStack(ctx.Err())
			}
		})

		return nil
	})
}

// Addr returns the address socket is bound to.
func (s *Socket) Addr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tr == nil {
		return netip.AddrPort{}
	}
	return s.tr.LocalAddr()
}

// Inflight returns the number of pending requests.
func (s *Socket) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.txs.inflight()
}

// Request sends request and returns its transaction ID. onComplete is called exactly once, when
// response is received, request times out or is cancelled. If error is returned, request hasn't
// been sent and onComplete is never called. Socket is bound to an ephemeral port if Listen
// hasn't been called.
func (s *Socket) Request(value any, peer netip.AddrPort, opts RequestOptions, onComplete CompletionFn) (
	wire.TID, error,
) {
	b, err := wire.Encode(true, 0, s.config.RequestCodec, value)
	if err != nil {
		return 0, err
	}

	retry := s.config.Retry
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	tx := &transaction{
		request:    value,
		peer:       Peer{Addr: peer},
		buf:        b,
		ticks:      s.config.InitialTicks,
		onComplete: onComplete,
	}
	if retry {
		tx.schedule = s.config.Backoff
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return 0, errors.Wrap(ErrCancelled, "socket destroyed")
	}
	if s.tr == nil {
		if err := s.listen(s.log, 0); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}
	tid, err := s.txs.allocate(tx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	wire.PutHeader(b, true, tid)
	tr := s.tr
	log := s.log
	s.mu.Unlock()

	if err := tr.Send(peer, b); err != nil && !s.isDestroyed() {
		s.reportTransportError(log, err)
	}
	return tid, nil
}

type callResult struct {
	Response Response
	Err      error
}

// Call sends request and waits for its result. Request is cancelled if context is canceled.
func (s *Socket) Call(ctx context.Context, value any, peer netip.AddrPort, opts RequestOptions) (Response, error) {
	resCh := make(chan callResult, 1)
	tid, err := s.Request(value, peer, opts, func(resp Response, err error) {
		resCh <- callResult{Response: resp, Err: err}
	})
	if err != nil {
		return Response{}, err
	}

	select {
	case res := <-resCh:
		return res.Response, res.Err
	case <-ctx.Done():
		s.Cancel(tid, errors.WithStack(ctx.Err()))
		res := <-resCh
		return res.Response, res.Err
	}
}

// Response sends response to the request received from the peer. Nothing is sent if socket
// has been destroyed.
func (s *Socket) Response(value any, peer Peer) error {
	b, err := wire.Encode(false, peer.TID, s.config.ResponseCodec, value)
	if err != nil {
		return err
	}
	return s.send(peer.Addr, b)
}

// Cancel cancels pending request. err is delivered to the request, ErrCancelled is used if it is
// nil. It returns false if there is no pending request with the transaction ID.
func (s *Socket) Cancel(tid wire.TID, err error) bool {
	s.mu.Lock()
	tx, exists := s.txs.match(tid)
	s.mu.Unlock()

	if !exists {
		return false
	}

	if err == nil {
		err = errors.WithStack(ErrCancelled)
	}
	tx.complete(Response{}, err)
	return true
}

// Destroy stops the socket and cancels all the pending requests with err, ErrCancelled is used
// if it is nil. Socket passed in Config.Conn is not closed. It is safe to call it many times.
func (s *Socket) Destroy(err error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	close(s.closedCh)
	tr := s.tr
	log := s.log
	pending := s.txs.drain()
	s.mu.Unlock()

	if tr != nil {
		if err := tr.Close(); err != nil {
			log.Warn("Closing socket failed", zap.Error(err))
		}
	}

	if err == nil {
		err = errors.WithStack(ErrCancelled)
	}
	for _, tx := range pending {
		tx.complete(Response{}, err)
	}

	log.Debug("Socket destroyed", zap.Int("cancelled", len(pending)))
	s.emit(log, Closed{})
	close(s.doneCh)
}

func (s *Socket) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.destroyed
}

func (s *Socket) runReceiver(ctx context.Context, tr transport.Transport) error {
	log := logger.Get(ctx)
	buf := make([]byte, s.config.MaxDatagramSize)

	for {
		n, addr, err := tr.Receive(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.Destroy(nil)
				return nil
			}
			s.reportTransportError(log, err)
			continue
		}

		s.handleDatagram(log, buf[:n], addr)
	}
}

func (s *Socket) handleDatagram(log *zap.Logger, b []byte, addr netip.AddrPort) {
	if s.isDestroyed() {
		return
	}

	h, value, err := wire.Decode(b, s.config.RequestCodec, s.config.ResponseCodec)
	if err != nil {
		log.Debug("Dropping malformed frame", zap.Stringer("peer", addr), zap.Error(err))
		s.emit(log, Warning{Err: err})
		return
	}

	peer := Peer{
		Addr:      addr,
		TID:       h.TID,
		IsRequest: h.IsRequest,
	}

	if h.IsRequest {
		s.emit(log, InboundRequest{Value: value, Peer: peer})
		return
	}

	s.mu.Lock()
	tx, exists := s.txs.match(h.TID)
	s.mu.Unlock()

	var request any
	if exists {
		request = tx.request
		tx.complete(Response{Value: value, Peer: peer}, nil)
	} else {
		log.Debug("Response does not match any request",
			zap.Stringer("peer", peer),
			zap.Uint16("tid", uint16(h.TID)))
	}
	s.emit(log, InboundResponse{Value: value, Peer: peer, Request: request})
}

func (s *Socket) send(addr netip.AddrPort, b []byte) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	if s.tr == nil {
		if err := s.listen(s.log, 0); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	tr := s.tr
	log := s.log
	s.mu.Unlock()

	if err := tr.Send(addr, b); err != nil {
		if s.isDestroyed() {
			return nil
		}
		s.reportTransportError(log, err)
		return err
	}
	return nil
}

func (s *Socket) reportTransportError(log *zap.Logger, err error) {
	if transport.IsFatal(err) {
		log.Error("Transport failed", zap.Error(err))
		s.emit(log, FatalError{Err: err})
		return
	}
	log.Warn("Transport warning", zap.Error(err))
	s.emit(log, Warning{Err: err})
}

func (s *Socket) emit(log *zap.Logger, event any) {
	s.eventMu.RLock()
	defer s.eventMu.RUnlock()

	if s.eventsClosed {
		return
	}

	select {
	case s.eventCh <- event:
	default:
		log.Warn("Event channel is full, dropping event", zap.String("event", fmt.Sprintf("%T", event)))
	}
}

func (s *Socket) closeEvents() {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.eventCh)
	}
}
