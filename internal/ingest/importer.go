// Package ingest imports labeled transcript exports into the engine.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// Lines longer than this are rejected rather than buffered.
const maxLineBytes = 4 << 20

// Sink receives imported conversations, normally the app engine.
type Sink interface {
	IngestConversation(ctx context.Context, rec domain.ConversationRecord) (int, error)
}

// Stats summarizes one import.
type Stats struct {
	Conversations int
	Vectors       int
	Skipped       int
}

// record is one JSONL line of a transcript export. Timestamps are free-form
// strings; exports come from several systems with different date formats.
type record struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Success     bool    `json:"success"`
	Counselor   string  `json:"counselor"`
	SuccessRate float32 `json:"success_rate"`
	Timestamp   string  `json:"timestamp"`
}

// Importer streams JSONL transcript exports into a sink. Malformed lines are
// skipped with a warning so one bad record cannot abort a large export.
type Importer struct {
	sink   Sink
	logger *zerolog.Logger
}

// NewImporter creates an importer.
func NewImporter(sink Sink, logger *zerolog.Logger) *Importer {
	return &Importer{sink: sink, logger: logger}
}

// ImportFile imports a JSONL export from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	return im.Import(ctx, f)
}

// Import reads one conversation per line and hands each to the sink.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	line := 0

	for scanner.Scan() {
		line++

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		rec, err := parseLine(raw)
		if err != nil {
			im.logger.Warn().Err(err).Int("line", line).Msg("skipping malformed export line")
			stats.Skipped++

			continue
		}

		vectors, err := im.sink.IngestConversation(ctx, rec)
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}

		stats.Conversations++
		stats.Vectors += vectors
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read export: %w", err)
	}

	im.logger.Info().
		Int("conversations", stats.Conversations).
		Int("vectors", stats.Vectors).
		Int("skipped", stats.Skipped).
		Msg("import complete")

	return stats, nil
}

func parseLine(raw string) (domain.ConversationRecord, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.ConversationRecord{}, fmt.Errorf("decode: %w", err)
	}

	text := norm.NFKC.String(strings.TrimSpace(rec.Text))
	if text == "" {
		return domain.ConversationRecord{}, fmt.Errorf("empty conversation text")
	}

	var ts time.Time

	if rec.Timestamp != "" {
		parsed, err := dateparse.ParseAny(rec.Timestamp)
		if err != nil {
			return domain.ConversationRecord{}, fmt.Errorf("timestamp %q: %w", rec.Timestamp, err)
		}

		ts = parsed
	}

	return domain.ConversationRecord{
		ID:          rec.ID,
		Text:        text,
		Success:     rec.Success,
		Counselor:   strings.TrimSpace(rec.Counselor),
		SuccessRate: rec.SuccessRate,
		Timestamp:   ts,
	}, nil
}
