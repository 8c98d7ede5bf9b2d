package services

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// EventOrder serializes a candidate's mutation commit together with its
// event publish. Without it, a request can commit first and yet publish
// after a later one, because the row lock is released at commit and the
// broadcast happens afterward. Locks are striped by candidate id; holders
// must release before any slow external call.
type EventOrder struct {
	shards [64]sync.Mutex
}

func NewEventOrder() *EventOrder {
	return &EventOrder{}
}

// Lock acquires the candidate's stripe and returns its unlock function.
func (o *EventOrder) Lock(id uuid.UUID) func() {
	m := &o.shards[binary.BigEndian.Uint32(id[:4])%uint32(len(o.shards))]
	m.Lock()
	return m.Unlock
}
