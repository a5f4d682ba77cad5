package coordinator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/amarcoder01/typemaster-realtime/internal/metrics"
	"github.com/amarcoder01/typemaster-realtime/internal/protocol"
	"github.com/amarcoder01/typemaster-realtime/internal/race"
	"github.com/amarcoder01/typemaster-realtime/internal/registry"
	"github.com/amarcoder01/typemaster-realtime/internal/scheduler"
	"github.com/amarcoder01/typemaster-realtime/internal/store"
)

var ErrWrongStatus = race.ErrWrongStatus

const maxChatLen = 200

// Options tune race timing. Zero values fall back to the defaults below.
type Options struct {
	CountdownSeconds int // default 3
	DefaultDuration  int // race length in seconds, default 60
	CleanupSeconds   int // grace before a finished race is deleted, default 60
}

func (o Options) withDefaults() Options {
	if o.CountdownSeconds <= 0 {
		o.CountdownSeconds = 3
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = 60
	}
	if o.CleanupSeconds <= 0 {
		o.CleanupSeconds = 60
	}
	return o
}

// Coordinator owns one race. All mutation happens on the loop goroutine;
// sockets, the control plane and the scheduler only ever send into the inbox.
type Coordinator struct {
	inbox chan Msg
	state *race.State
	reg   *registry.Registry
	sched *scheduler.Scheduler
	store store.Store
	clock clockwork.Clock
	log   *zap.Logger
	opts  Options

	// onEmpty tells the hub to forget this race after teardown.
	onEmpty func()

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the coordinator for raceID, rehydrating persisted state and
// re-arming any persisted wake before the loop starts.
func New(parent context.Context, raceID string, st store.Store, clock clockwork.Clock, log *zap.Logger, opts Options, onEmpty func()) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	c := &Coordinator{
		inbox:   make(chan Msg, 64),
		reg:     registry.New(clock),
		store:   st,
		clock:   clock,
		log:     log.With(zap.String("race_id", raceID)),
		opts:    opts,
		onEmpty: onEmpty,
		ctx:     ctx,
		cancel:  cancel,
	}

	c.state = race.NewState(raceID, opts.DefaultDuration)
	if found, err := st.LoadJSON(ctx, c.stateKey(), c.state); err != nil {
		c.log.Warn("failed to load persisted race", zap.Error(err))
	} else if found {
		c.log.Info("rehydrated race", zap.String("status", string(c.state.Status)))
	}

	c.sched = scheduler.New(c.stateKey(), st, clock, c.log, func(gen uint64) {
		select {
		case c.inbox <- TimerFired{Gen: gen}:
		case <-ctx.Done():
		}
	})
	c.sched.Restore(ctx)

	go c.loop()
	return c
}

// Inbox exposes the mailbox to the socket and HTTP layers.
func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

// Done is closed once the coordinator has torn down or shut down. Senders
// should select on it so they never block on a dead mailbox.
func (c *Coordinator) Done() <-chan struct{} { return c.ctx.Done() }

// Stop shuts the loop down without deleting persisted state.
func (c *Coordinator) Stop() {
	select {
	case c.inbox <- Shutdown{}:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.handleJoin(msg)

			case FromClient:
				c.handleClient(msg.SessionID, msg.Data)

			case Leave:
				if c.handleLeave(msg.SessionID) {
					return
				}

			case TimerFired:
				if c.handleTimer(msg.Gen) {
					return
				}

			case Start:
				msg.Reply <- c.handleStart(msg.Text, msg.Duration)

			case GetState:
				msg.Reply <- View{State: c.snapshot(), NumSessions: c.reg.Len()}

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Coordinator) handleJoin(msg Join) {
	p, created := c.state.AddParticipant(msg.ParticipantID, msg.Username, msg.AvatarColor)
	sess := c.reg.Register(msg.ParticipantID, map[string]string{"race": c.state.RaceID}, msg.Outbox)

	if created {
		c.persist()
	}
	c.reg.Broadcast(protocol.PlayerJoinedMsg{Type: "player_joined", Participant: p}, sess.ID)

	snap := c.snapshot()
	c.reg.Send(sess, protocol.RaceStateMsg{Type: "race_state", State: &snap})

	msg.Reply <- sess.ID
}

// handleClient parses and applies one inbound frame. Malformed payloads and
// messages that do not fit the current status are dropped, never surfaced.
func (c *Coordinator) handleClient(sessionID uuid.UUID, data []byte) {
	sess := c.reg.Get(sessionID)
	if sess == nil {
		return
	}
	c.reg.Touch(sessionID)

	var m protocol.RaceClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Debug("dropping malformed frame", zap.Error(err))
		return
	}
	metrics.InboundMessages.WithLabelValues("race", m.Type).Inc()

	switch m.Type {
	case protocol.RaceMsgReady:
		c.handleReady(sess)

	case protocol.RaceMsgProgress:
		c.handleProgress(sess, m)

	case protocol.RaceMsgFinish:
		c.handleFinish(sess, m)

	case protocol.RaceMsgChat:
		c.handleChat(sess, m.Message)

	case protocol.RaceMsgPing:
		c.reg.Send(sess, protocol.PongMsg{Type: "pong", Timestamp: c.now()})

	default:
		c.log.Debug("dropping unknown message type", zap.String("type", m.Type))
	}
}

func (c *Coordinator) handleReady(sess *registry.Session) {
	changed, err := c.state.MarkReady(sess.ParticipantID)
	if err != nil || !changed {
		return
	}
	c.reg.Broadcast(protocol.PlayerReadyMsg{Type: "player_ready", ParticipantID: sess.ParticipantID}, uuid.Nil)
	c.persist()

	if c.state.AllReady() {
		c.beginCountdown()
	}
}

func (c *Coordinator) beginCountdown() {
	if err := c.state.BeginCountdown(); err != nil {
		return
	}
	c.reg.Broadcast(protocol.CountdownStartMsg{Type: "countdown_start", Seconds: c.opts.CountdownSeconds}, uuid.Nil)
	c.sched.Arm(c.ctx, c.now()+int64(c.opts.CountdownSeconds)*1000)
	c.persist()
}

func (c *Coordinator) handleProgress(sess *registry.Session, m protocol.RaceClientMessage) {
	p, err := c.state.ApplyProgress(sess.ParticipantID, m.Progress, m.WPM, m.Accuracy)
	if err != nil || p == nil {
		return
	}
	c.reg.Broadcast(protocol.ProgressUpdateMsg{
		Type:          "progress_update",
		ParticipantID: p.ID,
		Progress:      p.Progress,
		WPM:           p.WPM,
		Accuracy:      p.Accuracy,
	}, uuid.Nil)
	c.persist()
}

func (c *Coordinator) handleFinish(sess *registry.Session, m protocol.RaceClientMessage) {
	p, err := c.state.Finish(sess.ParticipantID, m.WPM, m.Accuracy, c.now())
	if err != nil || p == nil {
		return
	}
	c.reg.Broadcast(protocol.PlayerFinishedMsg{
		Type:          "player_finished",
		ParticipantID: p.ID,
		Position:      *p.Position,
		WPM:           p.WPM,
		Accuracy:      p.Accuracy,
	}, uuid.Nil)
	c.persist()

	if c.state.AllFinished() {
		c.endRace()
	}
}

func (c *Coordinator) handleChat(sess *registry.Session, text string) {
	if text == "" {
		return
	}
	if len(text) > maxChatLen {
		text = text[:maxChatLen]
	}
	p := c.state.Participants[sess.ParticipantID]
	if p == nil {
		return
	}
	c.reg.Broadcast(protocol.ChatMsg{
		Type:          "chat",
		ParticipantID: p.ID,
		Username:      p.Username,
		Message:       text,
		Timestamp:     c.now(),
	}, sess.ID)
}

// handleTimer dispatches the single wake on the current status. Returns true
// when the coordinator tore itself down.
func (c *Coordinator) handleTimer(gen uint64) bool {
	if gen != c.sched.Gen() {
		return false // stale fire from a superseded arm
	}

	switch c.state.Status {
	case race.StatusCountdown:
		c.beginRacing()

	case race.StatusRacing:
		c.endRace()

	case race.StatusFinished:
		c.teardown()
		return true
	}
	return false
}

func (c *Coordinator) beginRacing() {
	now := c.now()
	if err := c.state.BeginRacing(now); err != nil {
		return
	}
	c.reg.Broadcast(protocol.RaceStartMsg{
		Type:      "race_start",
		StartTime: now,
		Duration:  c.state.Duration,
	}, uuid.Nil)
	c.sched.Arm(c.ctx, now+int64(c.state.Duration)*1000)
	c.persist()
	metrics.RacesStarted.Inc()
}

func (c *Coordinator) endRace() {
	if err := c.state.FinishRace(); err != nil {
		return
	}
	c.reg.Broadcast(protocol.RaceEndMsg{Type: "race_end", Results: c.state.FinalStandings()}, uuid.Nil)
	c.sched.Arm(c.ctx, c.now()+int64(c.opts.CleanupSeconds)*1000)
	c.persist()
	metrics.RacesFinished.Inc()
}

func (c *Coordinator) handleStart(text string, duration int) error {
	if c.state.Status != race.StatusWaiting {
		return ErrWrongStatus
	}
	c.state.Text = text
	if duration > 0 {
		c.state.Duration = duration
	}
	c.beginCountdown()
	return nil
}

// handleLeave drops the session; the participant record stays so the player
// can rejoin. When the last session goes, the race is torn down immediately.
func (c *Coordinator) handleLeave(sessionID uuid.UUID) bool {
	sess := c.reg.Get(sessionID)
	if sess == nil {
		return false
	}
	pid := sess.ParticipantID
	c.reg.Remove(sessionID)
	c.reg.Broadcast(protocol.PlayerLeftMsg{Type: "player_left", ParticipantID: pid}, uuid.Nil)

	if c.reg.Len() == 0 {
		c.teardown()
		return true
	}
	return false
}

// teardown deletes all persisted and in-memory state for this race.
func (c *Coordinator) teardown() {
	c.sched.Disarm(c.ctx)
	if err := c.store.Delete(c.ctx, c.stateKey()); err != nil {
		c.log.Warn("failed to delete persisted race", zap.Error(err))
	}
	c.reg.CloseAll()
	if c.onEmpty != nil {
		c.onEmpty()
	}
	c.cancel()
}

// shutdown stops the loop but keeps persisted state for a later restart.
func (c *Coordinator) shutdown() {
	c.sched.Stop()
	c.reg.CloseAll()
	c.cancel()
}

func (c *Coordinator) persist() {
	if err := c.store.SaveJSON(c.ctx, c.stateKey(), c.state); err != nil {
		c.log.Warn("failed to persist race", zap.Error(err))
	}
}

func (c *Coordinator) snapshot() race.State {
	snap := *c.state
	snap.Participants = make(map[int]*race.Participant, len(c.state.Participants))
	for id, p := range c.state.Participants {
		cp := *p
		if p.FinishTime != nil {
			ft := *p.FinishTime
			cp.FinishTime = &ft
		}
		if p.Position != nil {
			pos := *p.Position
			cp.Position = &pos
		}
		snap.Participants[id] = &cp
	}
	if c.state.StartTime != nil {
		st := *c.state.StartTime
		snap.StartTime = &st
	}
	if c.state.HostParticipantID != nil {
		host := *c.state.HostParticipantID
		snap.HostParticipantID = &host
	}
	return snap
}

func (c *Coordinator) now() int64 { return c.clock.Now().UnixMilli() }

func (c *Coordinator) stateKey() string { return "race:" + c.state.RaceID }
