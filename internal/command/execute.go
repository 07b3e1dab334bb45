// Package command applies decoded requests to the cache.
package command

import (
	"bytes"
	"fmt"

	"github.com/catatsuy/kioku/internal/cache"
	"github.com/catatsuy/kioku/internal/model"
	"github.com/catatsuy/kioku/internal/protocol"
)

// Outcome labels an executed command for metrics and logs.
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeNotStored Outcome = "not_stored"
	OutcomeHit       Outcome = "hit"
	OutcomeMiss      Outcome = "miss"
)

func (o Outcome) String() string { return string(o) }

// Execute runs req against c and returns the encoded reply with its outcome.
// The caller must hold exclusive access to c for the duration of the call;
// the returned slice never aliases cache memory.
func Execute(c *cache.Cache, req protocol.Request) ([]byte, Outcome) {
	switch req.Verb {
	case protocol.VerbSet:
		store(c, req)
		return stored()
	case protocol.VerbAdd:
		if it, ok := c.Peek(req.Key); ok && !it.Expired(c.NowUnix()) {
			return notStored()
		}
		store(c, req)
		return stored()
	case protocol.VerbReplace:
		if _, ok := c.Peek(req.Key); !ok {
			return notStored()
		}
		store(c, req)
		return stored()
	case protocol.VerbAppend:
		return concat(c, req.Key, func(old, add []byte) []byte {
			return joinBytes(old, add)
		}, req.Value)
	case protocol.VerbPrepend:
		return concat(c, req.Key, func(old, add []byte) []byte {
			return joinBytes(add, old)
		}, req.Value)
	case protocol.VerbGet:
		it, ok := c.Get(req.Key)
		if !ok {
			return []byte(protocol.End), OutcomeMiss
		}
		return protocol.AppendValue(nil, req.Key, it.Flags, len(it.Value), it.Value), OutcomeHit
	default:
		panic(fmt.Sprintf("command: unhandled verb %d", req.Verb))
	}
}

func stored() ([]byte, Outcome) { return []byte(protocol.Stored), OutcomeStored }
func notStored() ([]byte, Outcome) { return []byte(protocol.NotStored), OutcomeNotStored }

func store(c *cache.Cache, req protocol.Request) {
	item := model.NewItem(req.Flags, req.Exptime, req.Value, req.Size, c.NowUnix())
	c.InsertOrReplace(req.Key, item)
}

// concat rewrites the value of an existing key. Flags, expiry and recency
// are kept as they are.
func concat(c *cache.Cache, key string, join func(old, add []byte) []byte, payload []byte) ([]byte, Outcome) {
	it, ok := c.Peek(key)
	if !ok {
		return notStored()
	}

	value := join(it.Value, bytes.TrimRight(payload, "\r\n"))
	c.UpdateValue(key, value, len(value))
	return stored()
}

func joinBytes(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
