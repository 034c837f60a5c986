package ws

import "github.com/ai-devops/autoheal/internal/domain"

// ring is a fixed-capacity FIFO of events. When full, a push overwrites
// the oldest entry. It is not safe for concurrent use; Hub guards it.
type ring struct {
	buf   []domain.Event
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]domain.Event, capacity)}
}

func (r *ring) push(ev domain.Event) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

// each visits events oldest first.
func (r *ring) each(fn func(domain.Event)) {
	for i := 0; i < r.size; i++ {
		fn(r.buf[(r.start+i)%len(r.buf)])
	}
}

func (r *ring) snapshot() []domain.Event {
	out := make([]domain.Event, 0, r.size)
	r.each(func(ev domain.Event) { out = append(out, ev) })
	return out
}

func (r *ring) len() int { return r.size }

func (r *ring) capacity() int { return len(r.buf) }
