package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

type fakeSink struct {
	records []domain.ConversationRecord
}

func (f *fakeSink) IngestConversation(_ context.Context, rec domain.ConversationRecord) (int, error) {
	f.records = append(f.records, rec)

	if rec.Success {
		return 2, nil
	}

	return 0, nil
}

func testImporter(sink Sink) *Importer {
	logger := zerolog.Nop()

	return NewImporter(sink, &logger)
}

func TestImport_MixedTimestampFormats(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","text":"hello there","success":true,"counselor":"kim","success_rate":0.9,"timestamp":"2026-03-01T10:00:00Z"}`,
		`{"id":"b","text":"follow up","success":false,"timestamp":"March 2, 2026"}`,
		`{"id":"c","text":"no timestamp at all","success":true}`,
	}, "\n")

	sink := &fakeSink{}
	stats, err := testImporter(sink).Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Conversations)
	assert.Equal(t, 4, stats.Vectors)
	assert.Equal(t, 0, stats.Skipped)

	require.Len(t, sink.records, 3)
	assert.Equal(t, 2026, sink.records[0].Timestamp.Year())
	assert.Equal(t, time.March, sink.records[1].Timestamp.Month())
	assert.Equal(t, 2, sink.records[1].Timestamp.Day())
	assert.True(t, sink.records[2].Timestamp.IsZero())
}

func TestImport_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","text":"fine","success":true}`,
		`not json at all`,
		`{"id":"b","text":"","success":true}`,
		`{"id":"c","text":"bad date","timestamp":"not a date"}`,
		``,
		`{"id":"d","text":"also fine","success":false}`,
	}, "\n")

	sink := &fakeSink{}
	stats, err := testImporter(sink).Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Conversations)
	assert.Equal(t, 3, stats.Skipped)
}

func TestImport_NormalizesText(t *testing.T) {
	// Full-width characters and surrounding whitespace are normalized away.
	input := `{"id":"a","text":"  ｐｒｉｃｅ ｐｌａｎ  ","success":true}`

	sink := &fakeSink{}
	_, err := testImporter(sink).Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "price plan", sink.records[0].Text)
}
