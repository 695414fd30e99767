// Package dedup filters broker redeliveries. Inbound commands arrive at
// QoS 1, so the broker may deliver the same request more than once; Filter
// remembers request ids for a TTL window, with a hard cap on retained
// entries so a chatty controller cannot grow the map without bound.
package dedup

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

type Filter struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	seen map[string]time.Time
}

func New(ttl time.Duration, cap int) *Filter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cap <= 0 {
		cap = 4096
	}
	return &Filter{ttl: ttl, cap: cap, seen: make(map[string]time.Time, cap)}
}

// Seen records key and reports whether it was already recorded inside the
// TTL window. An empty key is never treated as a duplicate.
func (f *Filter) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	if exp, ok := f.seen[key]; ok && now.Before(exp) {
		return true
	}
	f.seen[key] = now.Add(f.ttl)
	f.sweep(now)
	return false
}

func (f *Filter) sweep(now time.Time) {
	if len(f.seen) <= f.cap {
		return
	}
	for k, exp := range f.seen {
		if now.After(exp) {
			delete(f.seen, k)
		}
		if len(f.seen) <= f.cap {
			return
		}
	}
	// still over cap with nothing expired: shed arbitrary entries, a lost
	// dedup record only risks re-running one idempotent command
	for k := range f.seen {
		delete(f.seen, k)
		if len(f.seen) <= f.cap {
			return
		}
	}
}

// PayloadKey derives a dedup key for commands that carry no request id.
func PayloadKey(b []byte) string {
	h := fnv.New64a()
	h.Write(b)
	return "h:" + strconv.FormatUint(h.Sum64(), 16)
}
