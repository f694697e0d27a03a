package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tests use nil conns: the write pump never starts, messages queue in the
// client's send buffer where we can read them back

func drainOne(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatal("expected a queued message")
		return Envelope{}
	}
}

func TestHubConnectAndSnapshot(t *testing.T) {
	hub := NewHub()

	hub.Connect("alice", "Alice", 1000, nil)
	hub.Connect("bob", "Bob", 1200, nil)

	assert.True(t, hub.IsOnline("alice"))
	assert.True(t, hub.IsOnline("bob"))
	assert.False(t, hub.IsOnline("carol"))

	snapshot := hub.Snapshot()
	require.Len(t, snapshot, 2)
	for _, p := range snapshot {
		assert.Equal(t, StateIdle, p.State)
	}
}

func TestHubReconnectReplacesPriorEntry(t *testing.T) {
	hub := NewHub()

	first := hub.Connect("alice", "Alice", 1000, nil)
	second := hub.Connect("alice", "Alice", 1000, nil)

	assert.True(t, first.closed, "stale channel is closed on reconnect")
	require.Len(t, hub.Snapshot(), 1)

	// disconnecting the stale client must not clear the fresh entry
	hub.Disconnect(first)
	assert.True(t, hub.IsOnline("alice"))

	hub.Disconnect(second)
	assert.False(t, hub.IsOnline("alice"))
}

func TestHubSetStatusBroadcasts(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("alice", "Alice", 1000, nil)
	drainOne(t, alice) // connect snapshot

	hub.SetStatus("alice", StateSearching)

	env := drainOne(t, alice)
	assert.Equal(t, "presence_snapshot", env.Type)
	var snap PresenceSnapshotPayload
	require.NoError(t, json.Unmarshal(env.Payload, &snap))
	require.Len(t, snap.Players, 1)
	assert.Equal(t, StateSearching, snap.Players[0].State)
}

func TestHubSendToUnknownPlayerIsSilent(t *testing.T) {
	hub := NewHub()
	// must not panic or block
	hub.SendTo("ghost", "answer_result", AnswerResultPayload{})
	hub.Fanout([]string{"ghost"}, "match_finished", MatchFinishedPayload{})
}

func TestHubSendToQueuesEnvelope(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("alice", "Alice", 1000, nil)
	drainOne(t, alice) // connect snapshot

	hub.SendTo("alice", "queue_waiting", QueueWaitingPayload{Position: 2})

	env := drainOne(t, alice)
	assert.Equal(t, "queue_waiting", env.Type)
	var payload QueueWaitingPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 2, payload.Position)
}

func TestHubFullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	hub.Connect("alice", "Alice", 1000, nil)

	// nobody drains the queue; pushes beyond the buffer must not block
	for i := 0; i < sendBufferSize*2; i++ {
		hub.SendTo("alice", "queue_waiting", QueueWaitingPayload{Position: i})
	}
}
