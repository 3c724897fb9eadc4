package api

import "sync"

// latest hands out monotonically increasing tokens per logical resource.
// A response is applied only if its token is still the newest one issued
// for that resource; anything older is discarded as superseded.
type latest struct {
	mu  sync.Mutex
	seq map[string]uint64
}

type token struct {
	l        *latest
	resource string
	n        uint64
}

func (l *latest) begin(resource string) token {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq == nil {
		l.seq = make(map[string]uint64)
	}
	l.seq[resource]++
	return token{l: l, resource: resource, n: l.seq[resource]}
}

func (t token) current() bool {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	return t.l.seq[t.resource] == t.n
}
