package leaderboard

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/metrics"
	"github.com/amarcoder01/typemaster-realtime/internal/protocol"
	"github.com/amarcoder01/typemaster-realtime/internal/registry"
)

// Tier buckets a session by how recently it sent anything. Only inbound
// client traffic refreshes activity; receiving broadcasts does not.
type Tier string

const (
	TierActive   Tier = "active"   // idle < 10s, always sent
	TierPassive  Tier = "passive"  // idle 10s-60s, ~10% of pushes
	TierObserver Tier = "observer" // idle > 60s, ~3% of pushes
)

const (
	activeWindow     = 10 * time.Second
	passiveWindow    = 60 * time.Second
	passiveSendProb  = 0.10
	observerSendProb = 0.03
)

// TierFor classifies an idle duration.
func TierFor(idle time.Duration) Tier {
	switch {
	case idle < activeWindow:
		return TierActive
	case idle <= passiveWindow:
		return TierPassive
	default:
		return TierObserver
	}
}

// Stats is the /stats payload.
type Stats struct {
	TotalConnections   int            `json:"totalConnections"`
	ByTier             map[string]int `json:"byTier"`
	TotalSubscriptions int            `json:"totalSubscriptions"`
	CachedLeaderboards int            `json:"cachedLeaderboards"`
}

type Msg interface{ isBroadcasterMsg() }

// Join attaches a socket; the session id is sent on Reply and the client is
// greeted with a connected message.
type Join struct {
	Outbox chan []byte
	Reply  chan uuid.UUID
}

func (Join) isBroadcasterMsg() {}

type FromClient struct {
	SessionID uuid.UUID
	Data      []byte
}

func (FromClient) isBroadcasterMsg() {}

type Leave struct{ SessionID uuid.UUID }

func (Leave) isBroadcasterMsg() {}

// Push replaces the cached snapshot for a scope and fans it out to matching
// subscribers, subject to tiering. Reply carries the number of sessions sent.
type Push struct {
	Scope   protocol.Scope
	Entries []protocol.Entry
	Reply   chan int
}

func (Push) isBroadcasterMsg() {}

type GetStats struct{ Reply chan Stats }

func (GetStats) isBroadcasterMsg() {}

type Shutdown struct{}

func (Shutdown) isBroadcasterMsg() {}

// Broadcaster owns one shard of leaderboard fan-out: its sessions, their
// per-scope subscriptions, and the latest snapshot per scope. Snapshots are
// memory-only; a restarted broadcaster starts with an empty cache.
type Broadcaster struct {
	inbox chan Msg
	shard string
	reg   *registry.Registry
	subs  map[uuid.UUID]map[protocol.Scope]struct{}
	cache map[protocol.Scope][]protocol.Entry
	rng   *rand.Rand
	clock clockwork.Clock
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option tweaks a Broadcaster; used by tests to pin the RNG.
type Option func(*Broadcaster)

// WithRand injects a seeded RNG so throttling is deterministic under test.
func WithRand(r *rand.Rand) Option {
	return func(b *Broadcaster) { b.rng = r }
}

func New(parent context.Context, shard string, clock clockwork.Clock, log *zap.Logger, opts ...Option) *Broadcaster {
	ctx, cancel := context.WithCancel(parent)
	b := &Broadcaster{
		inbox:  make(chan Msg, 64),
		shard:  shard,
		reg:    registry.New(clock),
		subs:   make(map[uuid.UUID]map[protocol.Scope]struct{}),
		cache:  make(map[protocol.Scope][]protocol.Entry),
		rng:    rand.New(rand.NewSource(clock.Now().UnixNano())),
		clock:  clock,
		log:    log.With(zap.String("shard", shard)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broadcaster) Inbox() chan<- Msg { return b.inbox }

// Done is closed once the broadcaster has shut down.
func (b *Broadcaster) Done() <-chan struct{} { return b.ctx.Done() }

func (b *Broadcaster) Stop() {
	select {
	case b.inbox <- Shutdown{}:
	case <-b.ctx.Done():
	}
}

func (b *Broadcaster) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.shutdown()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case Join:
				sess := b.reg.Register(0, map[string]string{"shard": b.shard}, msg.Outbox)
				b.subs[sess.ID] = make(map[protocol.Scope]struct{})
				b.reg.Send(sess, protocol.ConnectedMsg{Type: "connected", SessionID: sess.ID.String()})
				msg.Reply <- sess.ID

			case FromClient:
				b.handleClient(msg.SessionID, msg.Data)

			case Leave:
				b.reg.Remove(msg.SessionID)
				delete(b.subs, msg.SessionID)

			case Push:
				msg.Reply <- b.handlePush(msg.Scope, msg.Entries)

			case GetStats:
				msg.Reply <- b.stats()

			case Shutdown:
				b.shutdown()
				return
			}
		}
	}
}

func (b *Broadcaster) handleClient(sessionID uuid.UUID, data []byte) {
	sess := b.reg.Get(sessionID)
	if sess == nil {
		return
	}
	b.reg.Touch(sessionID)

	var m protocol.LeaderboardClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		b.log.Debug("dropping malformed frame", zap.Error(err))
		return
	}
	metrics.InboundMessages.WithLabelValues("leaderboard", m.Type).Inc()

	switch m.Type {
	case protocol.LeaderboardMsgSubscribe:
		b.handleSubscribe(sess, m.Scope())

	case protocol.LeaderboardMsgUnsubscribe:
		delete(b.subs[sessionID], m.Scope())
		b.reg.Send(sess, protocol.SubscribedMsg{Type: "unsubscribed", Subscription: m.Scope()})

	case protocol.LeaderboardMsgGet:
		scope := m.Scope()
		b.reg.Send(sess, protocol.LeaderboardUpdateMsg{
			Type:      "leaderboard_data",
			Mode:      scope.Mode,
			Language:  scope.Language,
			Timeframe: scope.Timeframe,
			Entries:   b.cache[scope],
		})

	case protocol.LeaderboardMsgPing:
		b.reg.Send(sess, protocol.PongMsg{Type: "pong", Timestamp: b.clock.Now().UnixMilli()})

	default:
		b.log.Debug("dropping unknown message type", zap.String("type", m.Type))
	}
}

// handleSubscribe dedupes by exact scope equality and immediately serves the
// cached snapshot so a late subscriber is not left empty until the next push.
func (b *Broadcaster) handleSubscribe(sess *registry.Session, scope protocol.Scope) {
	scopes := b.subs[sess.ID]
	if scopes == nil {
		scopes = make(map[protocol.Scope]struct{})
		b.subs[sess.ID] = scopes
	}
	if _, dup := scopes[scope]; !dup {
		scopes[scope] = struct{}{}
	}
	b.reg.Send(sess, protocol.SubscribedMsg{Type: "subscribed", Subscription: scope})

	if entries, ok := b.cache[scope]; ok {
		b.reg.Send(sess, protocol.LeaderboardUpdateMsg{
			Type:      "leaderboard_update",
			Mode:      scope.Mode,
			Language:  scope.Language,
			Timeframe: scope.Timeframe,
			Entries:   entries,
		})
	}
}

// handlePush caches the snapshot (even with zero subscribers) and fans out.
// Active sessions always get the update; passive and observer sessions pass
// an independent Bernoulli draw per push, bounding egress to idle clients.
func (b *Broadcaster) handlePush(scope protocol.Scope, entries []protocol.Entry) int {
	b.cache[scope] = entries

	update := protocol.LeaderboardUpdateMsg{
		Type:      "leaderboard_update",
		Mode:      scope.Mode,
		Language:  scope.Language,
		Timeframe: scope.Timeframe,
		Entries:   entries,
	}

	now := b.clock.Now()
	sent := 0
	b.reg.Each(func(sess *registry.Session) {
		if _, subscribed := b.subs[sess.ID][scope]; !subscribed {
			return
		}
		tier := TierFor(now.Sub(sess.LastActivity))
		if !b.admit(tier) {
			return
		}
		b.reg.Send(sess, update)
		metrics.BroadcastSends.WithLabelValues(string(tier)).Inc()
		sent++
	})
	return sent
}

func (b *Broadcaster) admit(tier Tier) bool {
	switch tier {
	case TierActive:
		return true
	case TierPassive:
		return b.rng.Float64() < passiveSendProb
	default:
		return b.rng.Float64() < observerSendProb
	}
}

func (b *Broadcaster) stats() Stats {
	byTier := map[string]int{
		string(TierActive):   0,
		string(TierPassive):  0,
		string(TierObserver): 0,
	}
	now := b.clock.Now()
	b.reg.Each(func(sess *registry.Session) {
		byTier[string(TierFor(now.Sub(sess.LastActivity)))]++
	})
	totalSubs := 0
	for _, scopes := range b.subs {
		totalSubs += len(scopes)
	}
	return Stats{
		TotalConnections:   b.reg.Len(),
		ByTier:             byTier,
		TotalSubscriptions: totalSubs,
		CachedLeaderboards: len(b.cache),
	}
}

func (b *Broadcaster) shutdown() {
	b.reg.CloseAll()
	b.cancel()
}
