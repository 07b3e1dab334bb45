package command_test

import (
	"testing"

	"github.com/catatsuy/kioku/internal/cache"
	"github.com/catatsuy/kioku/internal/command"
	"github.com/catatsuy/kioku/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, capacity int) *cache.Cache {
	t.Helper()
	c, err := cache.NewCache(capacity)
	require.NoError(t, err)
	return c
}

func write(verb protocol.Verb, key, value string, flags uint16, exptime int64) protocol.Request {
	return protocol.Request{
		Verb:    verb,
		Key:     key,
		Value:   []byte(value),
		Flags:   flags,
		Exptime: exptime,
		Size:    len(value),
	}
}

func get(key string) protocol.Request {
	return protocol.Request{Verb: protocol.VerbGet, Key: key}
}

func run(c *cache.Cache, req protocol.Request) string {
	reply, _ := command.Execute(c, req)
	return string(reply)
}

func TestSetThenGet(t *testing.T) {
	c := newCache(t, 4)

	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbSet, "k", "v", 7, 100)))
	assert.Equal(t, "VALUE k 7 1\r\nv\r\nEND\r\n", run(c, get("k")))
}

func TestGetMiss(t *testing.T) {
	c := newCache(t, 4)
	assert.Equal(t, "END\r\n", run(c, get("nope")))
}

func TestSetOverwrites(t *testing.T) {
	c := newCache(t, 4)

	run(c, write(protocol.VerbSet, "k", "one", 1, 100))
	run(c, write(protocol.VerbSet, "k", "two!", 2, 100))
	assert.Equal(t, "VALUE k 2 4\r\ntwo!\r\nEND\r\n", run(c, get("k")))
	assert.Equal(t, 1, c.Len())
}

func TestAdd(t *testing.T) {
	c := newCache(t, 4)

	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbAdd, "k", "v1", 0, 100)))
	assert.Equal(t, "NOT_STORED\r\n", run(c, write(protocol.VerbAdd, "k", "v2", 0, 100)))
	assert.Equal(t, "VALUE k 0 2\r\nv1\r\nEND\r\n", run(c, get("k")))
}

func TestAddOverExpiredKey(t *testing.T) {
	c := newCache(t, 4)

	run(c, write(protocol.VerbSet, "k", "old", 0, -1))
	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbAdd, "k", "new", 0, 100)))
	assert.Equal(t, "VALUE k 0 3\r\nnew\r\nEND\r\n", run(c, get("k")))
}

func TestAddOnLiveKeyDoesNotPromote(t *testing.T) {
	c := newCache(t, 2)

	run(c, write(protocol.VerbSet, "a", "1", 0, 100))
	run(c, write(protocol.VerbSet, "b", "2", 0, 100))
	run(c, write(protocol.VerbAdd, "a", "x", 0, 100))
	run(c, write(protocol.VerbSet, "c", "3", 0, 100))

	assert.Equal(t, "END\r\n", run(c, get("a")))
	assert.Equal(t, []string{"c", "b"}, c.Keys())
}

func TestReplace(t *testing.T) {
	c := newCache(t, 4)

	assert.Equal(t, "NOT_STORED\r\n", run(c, write(protocol.VerbReplace, "k", "v", 0, 100)))
	assert.Equal(t, 0, c.Len())

	run(c, write(protocol.VerbSet, "k", "v", 0, 100))
	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbReplace, "k", "w", 5, 100)))
	assert.Equal(t, "VALUE k 5 1\r\nw\r\nEND\r\n", run(c, get("k")))
}

func TestReplaceExpiredKey(t *testing.T) {
	c := newCache(t, 4)

	run(c, write(protocol.VerbSet, "k", "v", 0, -1))
	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbReplace, "k", "w", 0, 100)))
	assert.Equal(t, "VALUE k 0 1\r\nw\r\nEND\r\n", run(c, get("k")))
}

func TestAppendAndPrepend(t *testing.T) {
	c := newCache(t, 4)

	run(c, write(protocol.VerbSet, "k", "a", 3, 100))
	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbAppend, "k", "b", 0, 0)))
	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbAppend, "k", "c", 9, -1)))
	assert.Equal(t, "VALUE k 3 3\r\nabc\r\nEND\r\n", run(c, get("k")))

	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbPrepend, "k", "xy", 1, -1)))
	assert.Equal(t, "VALUE k 3 5\r\nxyabc\r\nEND\r\n", run(c, get("k")))

	it, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 5, it.Size)
}

func TestAppendStripsTrailingTerminators(t *testing.T) {
	c := newCache(t, 4)

	run(c, write(protocol.VerbSet, "k", "a", 0, 100))
	run(c, write(protocol.VerbAppend, "k", "b\r\n", 0, 100))
	run(c, write(protocol.VerbAppend, "k", "c\n", 0, 100))
	assert.Equal(t, "VALUE k 0 3\r\nabc\r\nEND\r\n", run(c, get("k")))
}

func TestAppendPrependOnAbsentKey(t *testing.T) {
	c := newCache(t, 4)

	assert.Equal(t, "NOT_STORED\r\n", run(c, write(protocol.VerbAppend, "k", "v", 0, 100)))
	assert.Equal(t, "NOT_STORED\r\n", run(c, write(protocol.VerbPrepend, "k", "v", 0, 100)))
	assert.Equal(t, 0, c.Len())
}

func TestAppendKeepsExpiryAndRecency(t *testing.T) {
	c := newCache(t, 2)

	run(c, write(protocol.VerbSet, "a", "1", 0, 100))
	run(c, write(protocol.VerbSet, "b", "2", 0, 100))
	before, _ := c.Peek("a")

	run(c, write(protocol.VerbAppend, "a", "x", 0, -1))
	after, _ := c.Peek("a")
	assert.Equal(t, before.ExpUnix, after.ExpUnix)
	assert.Equal(t, []string{"b", "a"}, c.Keys())
}

func TestNegativeExptimeOccupiesSlot(t *testing.T) {
	c := newCache(t, 2)

	assert.Equal(t, "STORED\r\n", run(c, write(protocol.VerbSet, "dead", "v", 0, -1)))
	assert.Equal(t, "END\r\n", run(c, get("dead")))
	assert.Equal(t, 1, c.Len())

	run(c, write(protocol.VerbSet, "a", "1", 0, 100))
	run(c, write(protocol.VerbSet, "b", "2", 0, 100))
	_, ok := c.Peek("dead")
	assert.False(t, ok)
}

func TestLRUThroughCommands(t *testing.T) {
	c := newCache(t, 3)

	for _, k := range []string{"A", "B", "C"} {
		run(c, write(protocol.VerbSet, k, k, 0, 100))
	}
	run(c, get("A"))
	run(c, write(protocol.VerbSet, "D", "D", 0, 100))

	assert.Equal(t, "END\r\n", run(c, get("B")))
	assert.Equal(t, "VALUE A 0 1\r\nA\r\nEND\r\n", run(c, get("A")))
}

func TestReplyDoesNotAliasCache(t *testing.T) {
	c := newCache(t, 1)

	run(c, write(protocol.VerbSet, "k", "abc", 0, 100))
	reply, _ := command.Execute(c, get("k"))
	run(c, write(protocol.VerbAppend, "k", "d", 0, 100))
	assert.Equal(t, "VALUE k 0 3\r\nabc\r\nEND\r\n", string(reply))
}

func TestExecuteOutcome(t *testing.T) {
	c := newCache(t, 4)

	tests := []struct {
		req   protocol.Request
		reply string
		want  command.Outcome
	}{
		{get("k"), "END\r\n", command.OutcomeMiss},
		{write(protocol.VerbReplace, "k", "v", 0, 100), "NOT_STORED\r\n", command.OutcomeNotStored},
		{write(protocol.VerbSet, "k", "v", 0, 100), "STORED\r\n", command.OutcomeStored},
		{write(protocol.VerbAdd, "k", "v", 0, 100), "NOT_STORED\r\n", command.OutcomeNotStored},
		{write(protocol.VerbAppend, "k", "w", 0, 100), "STORED\r\n", command.OutcomeStored},
		{get("k"), "VALUE k 0 2\r\nvw\r\nEND\r\n", command.OutcomeHit},
	}
	for _, tt := range tests {
		reply, outcome := command.Execute(c, tt.req)
		assert.Equal(t, tt.reply, string(reply), tt.req.Verb.String())
		assert.Equal(t, tt.want, outcome, tt.req.Verb.String())
	}
	assert.Equal(t, "not_stored", command.OutcomeNotStored.String())
}

func TestExecutePanicsOnZeroVerb(t *testing.T) {
	c := newCache(t, 1)
	assert.Panics(t, func() { command.Execute(c, protocol.Request{Key: "k"}) })
}
