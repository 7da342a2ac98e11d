package logsink

import (
	"fmt"
	"time"
)

// blobPath organizes log blobs by UTC date: YYYY/MM/DD/<host>.jsonl
func blobPath(t time.Time, host string) string {
	return fmt.Sprintf("%d/%02d/%02d/%s.jsonl", t.Year(), t.Month(), t.Day(), host)
}
