package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 5, 10, 0, 0, domain.HST)
	snap := domain.Snapshot{
		StationID: "0115",
		Series: domain.SeriesSet{
			"RF_1_Tot300s": {{Timestamp: now, Value: 0.3}},
			"Tair_1_Avg":   {{Timestamp: now, Value: 21.4}},
		},
		Changed:   []string{"RF_1_Tot300s", "Tair_1_Avg"},
		Sequence:  4,
		UpdatedAt: now,
	}

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("0115"), msg.Key)
	assert.Contains(t, string(msg.Value), `"station_id":"0115"`)
	assert.Contains(t, string(msg.Value), `"Tair_1_Avg":[[1714144200000,21.4]]`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "changed", msg.Headers[0].Key)
	assert.Equal(t, []byte("RF_1_Tot300s,Tair_1_Avg"), msg.Headers[0].Value)
	assert.Equal(t, "updated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T05:10:00-10:00"), msg.Headers[1].Value)

	var back domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, uint64(4), back.Sequence)
}

func TestSerializeToMessage_NoChanges(t *testing.T) {
	msg, err := serializeToMessage(domain.Snapshot{StationID: "0521"})
	require.NoError(t, err)
	assert.Empty(t, msg.Headers[0].Value)
}
