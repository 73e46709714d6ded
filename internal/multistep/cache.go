package multistep

import (
	"errors"
	"fmt"

	"github.com/samcharles93/specdraft/internal/draftlm"
	"github.com/samcharles93/specdraft/internal/specdecode"
)

var (
	ErrCacheFull           = errors.New("draft cache is full")
	ErrCacheNotInitialized = errors.New("draft cache is not initialized")
)

type entry struct {
	token int
	state draftlm.State
}

// seqCache holds one state per consumed token for every tracked sequence.
// It is not safe for concurrent use; the worker serialises access.
type seqCache struct {
	seqs     map[specdecode.SequenceID][]entry
	used     int
	capacity int
}

func newSeqCache(capacity int) *seqCache {
	return &seqCache{
		seqs:     make(map[specdecode.SequenceID][]entry),
		capacity: capacity,
	}
}

// truncate keeps the longest prefix of id's entries that matches want and
// returns its length plus the number of entries dropped.
func (c *seqCache) truncate(id specdecode.SequenceID, want []int) (kept, dropped int) {
	entries := c.seqs[id]
	n := 0
	for n < len(entries) && n < len(want) && entries[n].token == want[n] {
		n++
	}
	dropped = len(entries) - n
	if dropped > 0 {
		clear(entries[n:])
		c.seqs[id] = entries[:n]
		c.used -= dropped
	}
	return n, dropped
}

func (c *seqCache) last(id specdecode.SequenceID) draftlm.State {
	entries := c.seqs[id]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1].state
}

func (c *seqCache) push(id specdecode.SequenceID, tok int, state draftlm.State) error {
	if c.used >= c.capacity {
		return fmt.Errorf("sequence %d: %w (%d tokens)", id, ErrCacheFull, c.capacity)
	}
	c.seqs[id] = append(c.seqs[id], entry{token: tok, state: state})
	c.used++
	return nil
}

func (c *seqCache) drop(id specdecode.SequenceID) {
	c.used -= len(c.seqs[id])
	delete(c.seqs, id)
}

func (c *seqCache) size(id specdecode.SequenceID) int {
	return len(c.seqs[id])
}
