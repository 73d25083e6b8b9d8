package observer

import (
	"encoding/json"
	"sync"

	"gridscout.ai/internal/protocol"
	"gridscout.ai/internal/sim/encoding"
	"gridscout.ai/internal/sim/explore"
)

// Hub fans run messages out to websocket subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the frame.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	current *protocol.BootstrapResponse
	dropped uint64
}

type subscriber struct {
	out   chan []byte
	every int
}

func NewHub() *Hub {
	return &Hub{subs: map[uint64]*subscriber{}}
}

func (h *Hub) subscribe(id uint64, every, buf int) <-chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &subscriber{out: make(chan []byte, buf), every: every}
	h.subs[id] = s
	return s.out
}

func (h *Hub) setEvery(id uint64, every int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.every = every
	}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.out)
	}
}

// Subscribers is the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts frames not delivered to slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Bootstrap returns the state of the run being streamed, if any.
func (h *Hub) Bootstrap() (protocol.BootstrapResponse, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return protocol.BootstrapResponse{}, false
	}
	return *h.current, true
}

// publish sends b to every subscriber; step > 0 applies the Every filter.
func (h *Hub) publish(b []byte, step int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if step > 0 && s.every > 1 && step%s.every != 0 {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped++
		}
	}
}

// Track returns an explore.Observer that streams r to the hub's
// subscribers. It must be called before r takes its first step.
func (h *Hub) Track(info explore.RunInfo, r *explore.Run) explore.Observer {
	b := r.Belief()
	h.mu.Lock()
	h.current = &protocol.BootstrapResponse{
		ProtocolVersion: protocol.Version,
		RunID:           info.RunID,
		Seed:            info.Seed,
		Rows:            b.Rows(),
		Cols:            b.Cols(),
		SensorRange:     info.Config.SensorRange,
		MaxSteps:        info.Config.MaxSteps,
		Belief:          encoding.EncodeGrid(b.View()),
	}
	h.mu.Unlock()
	return &tracker{hub: h, info: info, run: r}
}

type tracker struct {
	hub  *Hub
	info explore.RunInfo
	run  *explore.Run
}

// ObserveStep runs on the run goroutine, so reading the belief map here
// does not race with Step.
func (t *tracker) ObserveStep(ev explore.StepEvent) {
	belief := encoding.EncodeGrid(t.run.Belief().View())
	t.hub.mu.Lock()
	if t.hub.current != nil && t.hub.current.RunID == t.info.RunID {
		t.hub.current.Step = ev.Step
		t.hub.current.Belief = belief
	}
	t.hub.mu.Unlock()

	b, err := json.Marshal(ev.Message(t.info.RunID))
	if err != nil {
		return
	}
	t.hub.publish(b, ev.Step)
}

func (t *tracker) ObserveResult(res explore.Result) {
	b, err := json.Marshal(res.Summary(t.info))
	if err != nil {
		return
	}
	t.hub.publish(b, 0)
}
