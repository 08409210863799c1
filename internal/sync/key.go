package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/beekhof/ecampus-sync/internal/feed"
)

// KeyProperty is the property stamped on destination events with their sync key.
const KeyProperty = "X-ECAMPUS-SYNC-KEY"

// DefaultKeyProperties are the source fields a sync key is derived from.
var DefaultKeyProperties = []string{"SUMMARY", "DTSTART", "DTEND"}

// SyncKey derives a stable key for src from the named properties.
// Missing properties contribute an empty value, so the key only changes
// when one of those fields changes in the feed.
func SyncKey(src feed.Event, names []string) string {
	h := sha256.New()
	for _, name := range names {
		name = strings.ToUpper(name)
		h.Write([]byte(name))
		h.Write([]byte{0x1f})
		h.Write([]byte(src.ValueOf(name)))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// occurrenceKey distinguishes the n-th event (n >= 2) of one run that shares
// its key with earlier events. Feed order decides n, so the same event keeps
// its key across runs as long as the feed order of the repeats is stable.
func occurrenceKey(key string, n int) string {
	return key + "#" + strconv.Itoa(n)
}
