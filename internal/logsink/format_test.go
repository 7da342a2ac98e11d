package logsink

import (
	"testing"
	"time"
)

func TestBlobPath(t *testing.T) {
	ts := time.Date(2026, 3, 7, 15, 4, 5, 0, time.UTC)
	if got := blobPath(ts, "web-0"); got != "2026/03/07/web-0.jsonl" {
		t.Fatalf("unexpected blob path %q", got)
	}
}
