package audit

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/sellio/bidcore/internal/model"
)

// hashTimeFormat is fixed-width microsecond RFC3339. Timestamps are
// truncated to microseconds in UTC before hashing: timestamptz columns
// store microseconds, not the nanoseconds time.Now produces, so a hash
// recomputed from a stored row must match one computed at append time.
const hashTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// ComputeEntryHash computes the chained hash for one audit entry.
//
// Formula: SHA256(uuid + "|" + timestamp + "|" + user_id + "|" + action +
// "|" + old_value + "|" + new_value + "|" + additional_data + "|" + prev_hash)
//
// Additional data is serialized as sorted "key:value" pairs so the hash
// is deterministic regardless of map iteration order.
func ComputeEntryHash(e *model.AuditLogEntry, prevHash string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		e.UUID.String(),
		e.Timestamp.UTC().Truncate(time.Microsecond).Format(hashTimeFormat),
		e.UserID.String(),
		e.Action,
		e.OldValue,
		e.NewValue,
		canonicalData(e.AdditionalData),
		prevHash,
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func canonicalData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s:%s", k, data[k])
	}
	return out
}
