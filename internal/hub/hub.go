package hub

import "context"

// Actor is anything the hub supervises: one mailbox goroutine per key.
type Actor interface{ Stop() }

type Msg[A Actor] interface{ isHubMsg() }

// Ensure replies with the actor for Key, spawning it on first use.
type Ensure[A Actor] struct {
	Key   string
	Reply chan A
}

// Get replies with the actor for Key, or the zero value (nil for pointer
// actors) when none exists.
type Get[A Actor] struct {
	Key   string
	Reply chan A
}

// Remove forgets the actor for Key. The actor is expected to have stopped
// itself already (teardown), so the hub does not call Stop here.
type Remove[A Actor] struct{ Key string }

// Shutdown stops every actor and then the hub loop.
type Shutdown[A Actor] struct{}

func (Ensure[A]) isHubMsg()   {}
func (Get[A]) isHubMsg()      {}
func (Remove[A]) isHubMsg()   {}
func (Shutdown[A]) isHubMsg() {}

// Hub routes every external request for a key to that key's single actor,
// creating actors on first message. One hub instance serves one actor family
// (race coordinators, leaderboard broadcasters).
type Hub[A Actor] struct {
	inbox  chan Msg[A]
	actors map[string]A
	spawn  func(ctx context.Context, key string) A
	ctx    context.Context
	cancel context.CancelFunc
}

func New[A Actor](parent context.Context, spawn func(ctx context.Context, key string) A) *Hub[A] {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub[A]{
		inbox:  make(chan Msg[A], 64),
		actors: make(map[string]A),
		spawn:  spawn,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub[A]) Inbox() chan<- Msg[A] { return h.inbox }

func (h *Hub[A]) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Ensure[A]:
				a, ok := h.actors[msg.Key]
				if !ok {
					a = h.spawn(h.ctx, msg.Key)
					h.actors[msg.Key] = a
				}
				msg.Reply <- a

			case Get[A]:
				a := h.actors[msg.Key] // zero value when missing
				msg.Reply <- a

			case Remove[A]:
				delete(h.actors, msg.Key)

			case Shutdown[A]:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub[A]) shutdown() {
	for _, a := range h.actors {
		a.Stop()
	}
	clear(h.actors)
	h.cancel()
}
