package retention

import (
	"strings"
	"time"
)

// Record is one stored backup artifact as reported by a store.
type Record struct {
	ID        string
	Name      string
	CreatedAt time.Time // zero when the store could not provide it
	Size      int64
}

// HasCreatedAt reports whether the record carries a creation instant.
func (r Record) HasCreatedAt() bool {
	return !r.CreatedAt.IsZero()
}

// ParseCreatedAt parses an RFC 3339 creation timestamp. Unparseable or empty
// input yields the zero time and false; such records are treated as having no
// creation instant.
func ParseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// FilterPrefix returns the records whose name starts with prefix, in input order.
func FilterPrefix(records []Record, prefix string) []Record {
	matching := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.HasPrefix(r.Name, prefix) {
			matching = append(matching, r)
		}
	}
	return matching
}
