package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/zenopico/internal/logger"
	"github.com/marmos91/zenopico/pkg/metrics"
	"github.com/marmos91/zenopico/pkg/protocol"
	"github.com/marmos91/zenopico/pkg/wire"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// frameOverhead is a conservative estimate of a Frame/Fragment's header +
// SN + length-prefix bytes, used to decide how much of batch_size is left
// for message payload.
const frameOverhead = 12

// Config is everything the client-role open handshake needs to propose
// (spec section 4.6 step 1 and section 6's config table).
type Config struct {
	Version                    byte
	ZID                        wire.ZenohID
	BatchSize                  uint16
	LeaseMs                    uint64
	SNResolution               protocol.Resolution
	RequestResolution          protocol.Resolution
	FragmentReassemblyMaxBytes int
}

// Dispatch receives the network messages carried by one Frame or completed
// Fragment sequence, in order. It must not block on anything the session
// itself could be holding a lock for (spec section 5: "no lock is held
// across user callbacks") — Session never calls Dispatch while holding its
// own mutex.
type Dispatch func(msgs []protocol.NetworkMessage)

// OnClose is invoked exactly once when the session transitions to Closed,
// whatever the reason. pkg/session uses this to wake pending queries with
// SessionClosed.
type OnClose func(reason protocol.CloseReason)

// Session is one client-role transport session: scouting is out of scope
// here (neither this package nor pkg/session issues it), so a Session's
// life begins in Opening and is driven entirely by Open.
type Session struct {
	link Link

	zid     wire.ZenohID
	peerZID wire.ZenohID

	batchSize     uint16
	ownLeaseMs    uint64 // our own keep-alive emission interval
	peerLeaseMs   uint64 // peer's declared lease; we must hear from it this often
	snResolution  protocol.Resolution
	reqResolution protocol.Resolution

	state atomic.Int32

	sendMu sync.Mutex // guards send-side framing so publishes don't interleave mid-frame

	reliable   *SNSpace
	bestEffort *SNSpace

	peerNextReliable   uint64
	peerNextBestEffort uint64
	peerSNMu           sync.Mutex

	reliableDefrag   *Defragmenter
	bestEffortDefrag *Defragmenter

	lastRecv atomic.Int64 // unix nanos, updated on every byte received

	dispatch Dispatch
	onClose  OnClose

	metrics metrics.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func channelLabel(c protocol.Channel) string {
	if c == protocol.ChannelReliable {
		return "reliable"
	}
	return "best_effort"
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

// Open performs the client-role handshake described in spec section 4.6
// (InitSyn/InitAck, OpenSyn/OpenAck) and, on success, starts the read and
// lease background tasks and returns an Operational Session.
func Open(ctx context.Context, link Link, cfg Config, dispatch Dispatch, onClose OnClose) (*Session, error) {
	s := &Session{
		link:     link,
		zid:      cfg.ZID,
		dispatch: dispatch,
		onClose:  onClose,
		metrics:  metrics.Noop,
	}
	s.state.Store(int32(StateOpening))

	initSyn := protocol.InitSyn{
		Version:           cfg.Version,
		WhatAmI:           protocol.WhatAmIClient,
		ZID:               cfg.ZID,
		BatchSize:         cfg.BatchSize,
		SNResolution:      cfg.SNResolution,
		RequestResolution: cfg.RequestResolution,
	}
	if err := s.writeFramed(ctx, initSyn); err != nil {
		return nil, err
	}

	dec := &protocol.StreamDecoder{}
	initAck, err := readOne[protocol.InitAck](ctx, link, dec)
	if err != nil {
		return nil, err
	}
	if initAck.Version != cfg.Version {
		return nil, zerr.New(zerr.Unsupported, "transport: peer version mismatch")
	}

	s.snResolution = cfg.SNResolution.Min(initAck.SNResolution)
	s.reqResolution = cfg.RequestResolution.Min(initAck.RequestResolution)
	s.batchSize = minU16(cfg.BatchSize, initAck.BatchSize)
	s.peerZID = initAck.ZID

	initialSN := uint64(0)
	openSyn := protocol.OpenSyn{LeaseMs: cfg.LeaseMs, InitialSN: initialSN, Cookie: initAck.Cookie}
	if err := s.writeFramed(ctx, openSyn); err != nil {
		return nil, err
	}

	openAck, err := readOne[protocol.OpenAck](ctx, link, dec)
	if err != nil {
		return nil, err
	}

	s.ownLeaseMs = cfg.LeaseMs
	s.peerLeaseMs = openAck.LeaseMs
	s.reliable = NewSNSpace(s.snResolution, initialSN)
	s.bestEffort = NewSNSpace(s.snResolution, 0)
	s.peerNextReliable = openAck.InitialSN
	s.peerNextBestEffort = 0
	s.reliableDefrag = NewDefragmenter(cfg.FragmentReassemblyMaxBytes)
	s.bestEffortDefrag = NewDefragmenter(cfg.FragmentReassemblyMaxBytes)
	s.lastRecv.Store(time.Now().UnixNano())

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state.Store(int32(StateOperational))

	// The handshake's own decode buffer may already contain bytes belonging
	// to the first post-handshake frame (the peer is free to pipeline); hand
	// whatever is pending to the read loop instead of discarding it.
	s.wg.Add(2)
	go s.readLoop(dec)
	go s.leaseLoop()

	logger.Info("transport session opened",
		logger.ZID(s.zid.String()), logger.PeerZID(s.peerZID.String()),
		logger.BatchSize(s.batchSize), logger.LeaseMs(s.peerLeaseMs))

	return s, nil
}

// readOne decodes exactly one message of type T from link via dec,
// blocking on more reads until one completes.
func readOne[T protocol.Message](ctx context.Context, link Link, dec *protocol.StreamDecoder) (T, error) {
	var zero T
	buf := make([]byte, 4096)
	for {
		n, err := link.Read(ctx, buf)
		if err != nil {
			return zero, zerr.Wrap(zerr.LinkError, "transport: link read failed", err)
		}
		msgs, err := dec.Feed(buf[:n])
		if err != nil {
			return zero, err
		}
		for _, m := range msgs {
			if typed, ok := m.(T); ok {
				return typed, nil
			}
			return zero, zerr.New(zerr.MalformedPacket, "transport: unexpected message during handshake")
		}
	}
}

func (s *Session) writeFramed(ctx context.Context, m protocol.Message) error {
	framed, err := protocol.EncodeFramed(m)
	if err != nil {
		return err
	}
	if err := s.link.Write(ctx, framed); err != nil {
		return zerr.Wrap(zerr.LinkError, "transport: link write failed", err)
	}
	return nil
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State { return State(s.state.Load()) }

// ZID returns this session's own identifier.
func (s *Session) ZID() wire.ZenohID { return s.zid }

// PeerZID returns the remote peer's identifier, valid once Operational.
func (s *Session) PeerZID() wire.ZenohID { return s.peerZID }

// RequestResolution returns the negotiated request-id resolution.
// pkg/session does not consult it: its pending-query ids come from a plain
// u32 counter.
func (s *Session) RequestResolution() protocol.Resolution { return s.reqResolution }

// UseMetrics swaps in a Prometheus-backed Recorder. Safe to call once right
// after Open, before the session starts carrying traffic; not safe to call
// concurrently with Send or the read loop.
func (s *Session) UseMetrics(m metrics.Recorder) {
	if m == nil {
		m = metrics.Noop
	}
	s.metrics = m
}

// maxPayload is how much network-message payload a single Frame or
// Fragment can carry before the batch_size budget is exhausted.
func (s *Session) maxPayload() int {
	n := int(s.batchSize) - frameOverhead
	if n <= 0 {
		return 1
	}
	return n
}

// Send encodes msgs and transmits them on channel, splitting into Fragment
// messages if the encoded payload would exceed batch_size (spec section
// 4.6: "A message larger than batch_size - overhead must be split into
// Fragment messages, all sharing ascending SNs, with More=1 on all but the
// last").
func (s *Session) Send(ctx context.Context, channel protocol.Channel, msgs []protocol.NetworkMessage) error {
	if s.State() != StateOperational {
		return zerr.New(zerr.SessionClosed, "transport: session not operational")
	}
	payload, err := protocol.EncodeNetworkMessages(msgs)
	if err != nil {
		return err
	}

	sns := s.snSpace(channel)
	max := s.maxPayload()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if len(payload) <= max {
		sn := sns.Allocate()
		frame := protocol.Frame{ChannelKind: channel, SN: sn, Payload: payload}
		s.metrics.ObserveFrame(channelLabel(channel), "send")
		return s.writeFramed(ctx, frame)
	}

	fragCount := (len(payload) + max - 1) / max
	logger.Debug("fragmenting outbound message",
		logger.PayloadBytes(len(payload)), logger.FragmentCount(fragCount), logger.Channel(channelLabel(channel)))

	for off := 0; off < len(payload); off += max {
		end := off + max
		if end > len(payload) {
			end = len(payload)
		}
		sn := sns.Allocate()
		frag := protocol.Fragment{ChannelKind: channel, SN: sn, More: end < len(payload), Payload: payload[off:end]}
		s.metrics.ObserveFragment(channelLabel(channel), "send")
		if err := s.writeFramed(ctx, frag); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) snSpace(channel protocol.Channel) *SNSpace {
	if channel == protocol.ChannelReliable {
		return s.reliable
	}
	return s.bestEffort
}

// Close sends a best-effort Close message, releases the link, and wakes
// every waiter exactly once, idempotently (spec section 4.6/5). It does not
// block on the read/lease tasks fully exiting — Close is called from
// inside the read loop itself on a protocol error, and joining there would
// deadlock; call Wait after Close if the caller needs that guarantee.
func (s *Session) Close(reason protocol.CloseReason) error {
	var sendErr error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sendErr = s.writeFramed(ctx, protocol.Close{Reason: reason})
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.link.Close()
		s.state.Store(int32(StateClosed))
		logger.Info("transport session closed", logger.ZID(s.zid.String()), logger.ErrorCode(int(reason)))
		if s.onClose != nil {
			s.onClose(reason)
		}
	})
	return sendErr
}

// Wait blocks until the read and lease background tasks have both
// returned. Safe to call after Close from a goroutine other than the
// session's own tasks.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) closeWithReason(reason protocol.CloseReason) {
	// Best-effort: failures writing the Close frame on an error path are not
	// actionable, the link is already presumed unhealthy.
	_ = s.Close(reason)
}

func (s *Session) readLoop(dec *protocol.StreamDecoder) {
	defer s.wg.Done()
	buf := make([]byte, 65536)
	for {
		if s.ctx.Err() != nil {
			return
		}
		n, err := s.link.Read(s.ctx, buf)
		if err != nil {
			if s.State() != StateClosing && s.State() != StateClosed {
				s.closeWithReason(protocol.CloseGeneric)
			}
			return
		}
		s.lastRecv.Store(time.Now().UnixNano())

		msgs, err := dec.Feed(buf[:n])
		if err != nil {
			s.closeWithReason(protocol.CloseInvalid)
			return
		}
		for _, m := range msgs {
			if !s.handleMessage(m) {
				return
			}
		}
	}
}

// handleMessage processes one decoded transport message. It returns false
// if the read loop should stop (the session is closing).
func (s *Session) handleMessage(m protocol.Message) bool {
	switch msg := m.(type) {
	case protocol.KeepAlive:
		return true
	case protocol.Close:
		s.state.Store(int32(StateClosing))
		s.closeWithReason(msg.Reason)
		return false
	case protocol.Frame:
		return s.handleFrame(msg)
	case protocol.Fragment:
		return s.handleFragment(msg)
	default:
		// Join and the scouting-category messages never arrive mid-session
		// on a client-role link; ignore anything else rather than tearing
		// the session down over it.
		return true
	}
}

func (s *Session) handleFrame(f protocol.Frame) bool {
	s.metrics.ObserveFrame(channelLabel(f.ChannelKind), "recv")
	if !s.checkAndAdvancePeerSN(f.ChannelKind, f.SN) {
		if f.ChannelKind == protocol.ChannelReliable {
			s.closeWithReason(protocol.CloseInvalid)
			return false
		}
		return true // best-effort: silently drop duplicate/backward
	}

	msgs, err := protocol.DecodeNetworkMessages(f.Payload)
	if err != nil {
		s.closeWithReason(protocol.CloseInvalid)
		return false
	}
	s.dispatch(msgs)
	return true
}

func (s *Session) handleFragment(f protocol.Fragment) bool {
	s.metrics.ObserveFragment(channelLabel(f.ChannelKind), "recv")
	if !s.checkAndAdvancePeerSN(f.ChannelKind, f.SN) {
		if f.ChannelKind == protocol.ChannelReliable {
			s.closeWithReason(protocol.CloseInvalid)
			return false
		}
		return true
	}

	defrag := s.reliableDefrag
	if f.ChannelKind == protocol.ChannelBestEffort {
		defrag = s.bestEffortDefrag
	}
	payload, err := defrag.Feed(s.snSpace(f.ChannelKind), f.SN, f.More, f.Payload)
	if err != nil {
		reason := "malformed"
		if zerr.Is(err, zerr.Overflow) {
			reason = "too_large"
		}
		s.metrics.RecordFragmentError(reason)
		s.closeWithReason(protocol.CloseInvalid)
		return false
	}
	if payload == nil {
		return true // still accumulating
	}
	msgs, err := protocol.DecodeNetworkMessages(payload)
	if err != nil {
		s.closeWithReason(protocol.CloseInvalid)
		return false
	}
	s.dispatch(msgs)
	return true
}

// checkAndAdvancePeerSN validates sn against the expected next sequence
// number for channel and advances it. Returns false for a duplicate or
// backward sn (spec section 4.6: "duplicate or backward SNs on the
// reliable channel abort the session... on best-effort, silently dropped").
func (s *Session) checkAndAdvancePeerSN(channel protocol.Channel, sn uint64) bool {
	s.peerSNMu.Lock()
	defer s.peerSNMu.Unlock()

	expected := &s.peerNextReliable
	if channel == protocol.ChannelBestEffort {
		expected = &s.peerNextBestEffort
	}

	// Any sn other than exactly the expected next one is either a duplicate
	// (sn behind expected) or a gap (sn ahead of expected) — both map to the
	// same "invalid on reliable, drop on best-effort" handling in the
	// caller, so no separate Follows check is needed here.
	if sn != *expected {
		return false
	}
	*expected = (sn + 1) % (uint64(1) << uint(s.snResolution))
	return true
}

func (s *Session) leaseLoop() {
	defer s.wg.Done()
	interval := time.Duration(s.ownLeaseMs/4) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastRecv.Load())
			if time.Since(last) > time.Duration(s.peerLeaseMs)*time.Millisecond {
				s.closeWithReason(protocol.CloseExpired)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			err := s.writeFramed(ctx, protocol.KeepAlive{})
			cancel()
			if err != nil {
				s.closeWithReason(protocol.CloseGeneric)
				return
			}
		}
	}
}
