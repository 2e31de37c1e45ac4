package shared

import (
	"fmt"
	"time"
)

// Folio builds a human-readable document reference, e.g. VTA-20260215-173512.
// Folios are display identifiers only; uniqueness is enforced by the store.
func Folio(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", prefix, at.Format("20060102"), at.UnixNano()%1_000_000)
}
