package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDDecodesNumberStringAndNull(t *testing.T) {
	var body struct {
		A ConversationID `json:"a"`
		B ConversationID `json:"b"`
		C ConversationID `json:"c"`
	}
	err := json.Unmarshal([]byte(`{"a": 7, "b": "conv-abc", "c": null}`), &body)
	require.NoError(t, err)

	assert.Equal(t, ConversationID("7"), body.A)
	assert.Equal(t, ConversationID("conv-abc"), body.B)
	assert.True(t, body.C.IsZero())
}

func TestConversationIDEncodesIntegersAsNumbers(t *testing.T) {
	data, err := json.Marshal(map[string]ConversationID{
		"numeric": "42",
		"opaque":  "thread-9",
		"absent":  "",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"numeric": 42, "opaque": "thread-9", "absent": null}`, string(data))
}

func TestConversationIDKeepsNonCanonicalIntegersAsStrings(t *testing.T) {
	data, err := json.Marshal(map[string]ConversationID{
		"zeros":    "007",
		"signed":   "+7",
		"negative": "-3",
		"huge":     "99999999999999999999",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"zeros": "007", "signed": "+7", "negative": -3, "huge": "99999999999999999999"}`, string(data))

	var back map[string]ConversationID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ConversationID("007"), back["zeros"])
	assert.Equal(t, ConversationID("+7"), back["signed"])
}

func TestConversationIDRejectsObjects(t *testing.T) {
	var id ConversationID
	assert.Error(t, json.Unmarshal([]byte(`{"id": 1}`), &id))
}

func TestConversationSummaryDecodesServiceListing(t *testing.T) {
	var got []ConversationSummary
	err := json.Unmarshal([]byte(`[
		{"id": 3, "created_at": "2026-01-02T10:00:00.123456", "updated_at": "2026-01-02T11:00:00+02:00"},
		{"id": "x", "created_at": null, "updated_at": ""}
	]`), &got)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, ConversationID("3"), got[0].ID)
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 123456000, time.UTC), got[0].CreatedAt.Time)
	assert.Equal(t, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC), got[0].UpdatedAt.UTC())
	assert.True(t, got[1].CreatedAt.IsZero())
	assert.True(t, got[1].UpdatedAt.IsZero())
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
}

func TestExchangeResultFailed(t *testing.T) {
	assert.False(t, ExchangeResult{Response: "done"}.Failed())

	failed := FailedExchange("3", "db down")
	assert.True(t, failed.Failed())
	assert.Equal(t, ConversationID("3"), failed.ConversationID)
	assert.Empty(t, failed.Response)
}
