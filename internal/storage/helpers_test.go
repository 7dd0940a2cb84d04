package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestTextRoundTrip(t *testing.T) {
	got := fromText(toText("hello"))
	if got != "hello" {
		t.Fatalf("fromText(toText()) = %q, want %q", got, "hello")
	}
}

func TestFromTextNull(t *testing.T) {
	if got := fromText(pgtype.Text{Valid: false}); got != "" {
		t.Fatalf("fromText(NULL) = %q, want empty", got)
	}
}

func TestToTextEmptyIsNull(t *testing.T) {
	if toText("").Valid {
		t.Fatal("toText(\"\") must be NULL")
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	const id = "a2f6f9f0-8c6f-4f6e-9d2a-3a1b2c3d4e5f"

	if got := fromUUID(toUUID(id)); got != id {
		t.Fatalf("fromUUID(toUUID()) = %q, want %q", got, id)
	}
}

func TestToUUIDInvalid(t *testing.T) {
	if toUUID("not-a-uuid").Valid {
		t.Fatal("toUUID on malformed input must be invalid")
	}
}

func TestSanitizeUTF8(t *testing.T) {
	if got := SanitizeUTF8("ok\xfftext"); got != "oktext" {
		t.Fatalf("SanitizeUTF8() = %q, want %q", got, "oktext")
	}

	if got := SanitizeUTF8("clean"); got != "clean" {
		t.Fatalf("SanitizeUTF8() = %q, want unchanged", got)
	}
}

func TestTimestamptzZeroIsNull(t *testing.T) {
	if toTimestamptz(time.Time{}).Valid {
		t.Fatal("zero time must map to NULL")
	}

	if !fromTimestamptz(pgtype.Timestamptz{Valid: false}).IsZero() {
		t.Fatal("NULL timestamp must map to zero time")
	}
}
