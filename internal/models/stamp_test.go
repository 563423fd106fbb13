package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampDecodesWireForms(t *testing.T) {
	var conv Conversation

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","lastMessageTime":"14:32"}`), &conv))
	assert.Equal(t, "14:32", conv.LastMessageTime.Raw)
	assert.False(t, conv.LastMessageTime.Exact())
	assert.False(t, conv.LastMessageTime.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","lastMessageTime":"2025-03-01T10:00:00.000Z"}`), &conv))
	assert.True(t, conv.LastMessageTime.Exact())
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), conv.LastMessageTime.Time.UTC())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","lastMessageTime":"2025-03-01T10:00:00.123"}`), &conv))
	assert.True(t, conv.LastMessageTime.Exact())
	assert.Equal(t, 2025, conv.LastMessageTime.Time.Year())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","lastMessageTime":null}`), &conv))
	assert.True(t, conv.LastMessageTime.IsZero())
}

func TestStampRejectsNonString(t *testing.T) {
	var conv Conversation
	assert.Error(t, json.Unmarshal([]byte(`{"lastMessageTime":42}`), &conv))
}

func TestStampEncodes(t *testing.T) {
	raw, err := json.Marshal(ParseStamp("14:32"))
	require.NoError(t, err)
	assert.JSONEq(t, `"14:32"`, string(raw))

	raw, err = json.Marshal(Stamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err = json.Marshal(StampAt(at))
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-03-01T10:00:00Z"`, string(raw))
}
