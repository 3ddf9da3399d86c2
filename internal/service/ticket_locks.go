package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// TicketLocks serializes mutations per ticket id with striped mutexes.
// Cross-ticket operations never contend beyond stripe collisions.
type TicketLocks struct {
	stripes [lockStripes]sync.Mutex
}

// NewTicketLocks constructs the lock set.
func NewTicketLocks() *TicketLocks {
	return &TicketLocks{}
}

// Lock acquires the stripe for a ticket and returns its unlock func.
func (l *TicketLocks) Lock(ticketID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticketID))
	stripe := &l.stripes[h.Sum32()%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}
