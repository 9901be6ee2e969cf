package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-health-dashboard/internal/config"
	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
)

func TestSerializeToMessage(t *testing.T) {
	generated := time.Date(2021, time.January, 15, 9, 30, 0, 0, time.FixedZone("EAT", 3*3600))
	snap := pipeline.Snapshot{RenderID: "3f2a6c1e-0000-4000-8000-000000000001", GeneratedAt: generated}
	row := domain.MergedRow{
		Region:          "Kenya",
		Date:            time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
		Temperature:     domain.Float(26.1),
		CaseCount:       domain.Float(140),
		CaseCountFilled: true,
	}

	msg, err := serializeToMessage(snap, row)
	require.NoError(t, err)

	assert.Equal(t, []byte("Kenya|2020-03-01"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, HeaderRenderID, msg.Headers[0].Key)
	assert.Equal(t, []byte(snap.RenderID), msg.Headers[0].Value)
	assert.Equal(t, HeaderGeneratedAt, msg.Headers[1].Key)
	assert.Equal(t, []byte("2021-01-15T06:30:00Z"), msg.Headers[1].Value)

	var decoded domain.MergedRow
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "Kenya", decoded.Region)
	assert.True(t, decoded.Date.Equal(row.Date))
	assert.InDelta(t, 26.1, *decoded.Temperature, 1e-9)
	assert.Nil(t, decoded.Rainfall)
	assert.True(t, decoded.CaseCountFilled)
	assert.Contains(t, string(msg.Value), `"rainfall":null`)
}

func TestPublish_EmptySnapshotIsNoop(t *testing.T) {
	p := NewPublisher(&config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaSnapshotTopic: "unused"}, slog.Default())
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Publish(context.Background(), pipeline.Snapshot{RenderID: "r"}))
}

func TestMessageKey(t *testing.T) {
	row := domain.MergedRow{Region: "Dar es Salaam", Date: time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "Dar es Salaam|2020-12-31", MessageKey(row))
}
