package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
	"github.com/stretchr/testify/assert"
)

func sampleEntry() *model.AuditLogEntry {
	return &model.AuditLogEntry{
		UUID:      uuid.MustParse("7f9c24e5-2f8a-4b1d-9c3e-8d5b6a7f0e12"),
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserID:    uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Action:    model.AuditBidCreated,
		OldValue:  "50.00",
		NewValue:  "60.00",
		AdditionalData: map[string]string{
			"bid_id":                  "abc",
			"down_payment_percentage": "50",
		},
	}
}

func TestComputeEntryHash(t *testing.T) {
	e := sampleEntry()

	hash := ComputeEntryHash(e, "")

	// SHA256 hex encoding is 64 characters.
	assert.Len(t, hash, 64)

	// Deterministic across calls.
	assert.Equal(t, hash, ComputeEntryHash(e, ""))

	// Map iteration order must not matter: rebuild the map.
	e2 := sampleEntry()
	e2.AdditionalData = map[string]string{
		"down_payment_percentage": "50",
		"bid_id":                  "abc",
	}
	assert.Equal(t, hash, ComputeEntryHash(e2, ""))
}

func TestComputeEntryHash_FieldSensitivity(t *testing.T) {
	base := ComputeEntryHash(sampleEntry(), "")

	mutations := map[string]func(e *model.AuditLogEntry){
		"uuid":      func(e *model.AuditLogEntry) { e.UUID = uuid.MustParse("00000000-0000-0000-0000-000000000001") },
		"timestamp": func(e *model.AuditLogEntry) { e.Timestamp = e.Timestamp.Add(time.Microsecond) },
		"user":      func(e *model.AuditLogEntry) { e.UserID = uuid.MustParse("99999999-9999-9999-9999-999999999999") },
		"action":    func(e *model.AuditLogEntry) { e.Action = model.AuditBidRejected },
		"old value": func(e *model.AuditLogEntry) { e.OldValue = "51.00" },
		"new value": func(e *model.AuditLogEntry) { e.NewValue = "61.00" },
		"data":      func(e *model.AuditLogEntry) { e.AdditionalData["bid_id"] = "xyz" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := sampleEntry()
			mutate(e)
			assert.NotEqual(t, base, ComputeEntryHash(e, ""), "mutating %s must change the hash", name)
		})
	}

	// Different previous hash links to a different chain position.
	assert.NotEqual(t, base, ComputeEntryHash(sampleEntry(), "deadbeef"))
}

func TestComputeEntryHash_MicrosecondRoundTrip(t *testing.T) {
	e := sampleEntry()
	e.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	base := ComputeEntryHash(e, "")

	// timestamptz columns keep microseconds only; the hash must be stable
	// across the storage round trip.
	e.Timestamp = e.Timestamp.Truncate(time.Microsecond)
	assert.Equal(t, base, ComputeEntryHash(e, ""))

	// Sub-microsecond noise never changes the hash, a full microsecond does.
	e.Timestamp = e.Timestamp.Add(time.Nanosecond)
	assert.Equal(t, base, ComputeEntryHash(e, ""))
	e.Timestamp = e.Timestamp.Add(time.Microsecond)
	assert.NotEqual(t, base, ComputeEntryHash(e, ""))
}

func TestComputeEntryHash_TimezoneIndependence(t *testing.T) {
	e := sampleEntry()
	base := ComputeEntryHash(e, "")

	loc := time.FixedZone("UTC+5", 5*3600)
	e.Timestamp = e.Timestamp.In(loc)
	assert.Equal(t, base, ComputeEntryHash(e, ""), "same instant must hash identically in any zone")
}
