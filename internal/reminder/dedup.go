package reminder

import (
	"sort"
	"sync"
)

// DateLayout is the layout of Key.Date.
const DateLayout = "2006-01-02"

// Key identifies one trigger occurrence: a user, a local date and a slot.
// Weekly triggers use their own slot labels so they never collide with a
// periodic slot at the same clock time.
type Key struct {
	UserID int64
	Date   string
	Slot   string
}

// Dedup remembers which trigger occurrences were already delivered.
// It is memory-only; a restart forgets everything.
type Dedup struct {
	mu   sync.Mutex
	sent map[Key]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{sent: map[Key]struct{}{}}
}

func (d *Dedup) Seen(k Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sent[k]
	return ok
}

func (d *Dedup) Mark(k Key) {
	d.mu.Lock()
	d.sent[k] = struct{}{}
	d.mu.Unlock()
}

// Purge drops entries whose date sorts before cutoff and returns how many
// were removed.
func (d *Dedup) Purge(cutoff string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for k := range d.sent {
		if k.Date < cutoff {
			delete(d.sent, k)
			n++
		}
	}
	return n
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// Keys returns a sorted snapshot of the stored keys.
func (d *Dedup) Keys() []Key {
	d.mu.Lock()
	out := make([]Key, 0, len(d.sent))
	for k := range d.sent {
		out = append(out, k)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Slot < out[j].Slot
	})
	return out
}
