package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/internal/store/memory"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEntries(t *testing.T, st *memory.Store, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := st.InTx(ctx, func(tx store.Tx) error {
			_, err := audit.AppendTx(ctx, tx, &model.AuditLogEntry{
				Timestamp: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
				UserID:    uuid.New(),
				Action:    model.AuditBidCreated,
				NewValue:  "60.00",
			})
			return err
		})
		require.NoError(t, err)
	}
}

func TestAppendTx_ChainsEntries(t *testing.T) {
	st := memory.New()
	appendEntries(t, st, 3)

	entries, err := st.AuditEntries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// First entry is rooted at the empty predecessor.
	assert.Empty(t, entries[0].PreviousLogHash)

	for i, e := range entries {
		assert.Equal(t, audit.ComputeEntryHash(&entries[i], e.PreviousLogHash), e.CurrentHash)
		if i > 0 {
			assert.Equal(t, entries[i-1].CurrentHash, e.PreviousLogHash)
		}
	}
}

func TestVerifyIntegrity_CleanChain(t *testing.T) {
	st := memory.New()
	appendEntries(t, st, 5)

	v := audit.NewVerifier(st, logger.NewNop())
	result, err := v.VerifyIntegrity(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Equal(t, 5, result.EntriesChecked)
	assert.Empty(t, result.TamperedLogIDs)
}

func TestVerifyIntegrity_SurvivesTimestampRoundTrip(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	// Entries are hashed with nanosecond wall-clock timestamps.
	for i := 0; i < 4; i++ {
		err := st.InTx(ctx, func(tx store.Tx) error {
			_, err := audit.AppendTx(ctx, tx, &model.AuditLogEntry{
				Timestamp: time.Date(2025, 6, 1, 12, 0, i, 123456789, time.UTC),
				UserID:    uuid.New(),
				Action:    model.AuditBidCreated,
				NewValue:  "60.00",
			})
			return err
		})
		require.NoError(t, err)
	}

	// timestamptz keeps microseconds, so verification reads truncated
	// timestamps back. The chain must still verify clean.
	for id := int64(1); id <= 4; id++ {
		st.TamperAudit(id, func(e *model.AuditLogEntry) {
			e.Timestamp = e.Timestamp.Truncate(time.Microsecond)
		})
	}

	v := audit.NewVerifier(st, logger.NewNop())
	result, err := v.VerifyIntegrity(ctx, 0)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Equal(t, 4, result.EntriesChecked)
	assert.Empty(t, result.TamperedLogIDs)
}

func TestVerifyIntegrity_TamperedValueField(t *testing.T) {
	st := memory.New()
	appendEntries(t, st, 5)

	// Mutate a stored value field of entry 3: only entry 3 is flagged,
	// the successors still link to its stored (unchanged) hash.
	st.TamperAudit(3, func(e *model.AuditLogEntry) { e.NewValue = "9999.99" })

	v := audit.NewVerifier(st, logger.NewNop())
	result, err := v.VerifyIntegrity(context.Background(), 0)
	require.NoError(t, err)

	assert.False(t, result.Verified)
	assert.Equal(t, []int64{3}, result.TamperedLogIDs)

	entries, err := st.AuditEntries(context.Background(), 0)
	require.NoError(t, err)
	for _, e := range entries {
		if e.ID == 3 {
			assert.Equal(t, model.VerificationTampered, e.VerificationStatus)
		} else {
			assert.Equal(t, model.VerificationVerified, e.VerificationStatus)
		}
	}
}

func TestVerifyIntegrity_TamperedHashBreaksLink(t *testing.T) {
	st := memory.New()
	appendEntries(t, st, 4)

	// Rewriting entry 2's own hash breaks entry 2 and orphans entry 3,
	// whose previous_log_hash no longer matches.
	st.TamperAudit(2, func(e *model.AuditLogEntry) { e.CurrentHash = "0000000000000000" })

	v := audit.NewVerifier(st, logger.NewNop())
	result, err := v.VerifyIntegrity(context.Background(), 0)
	require.NoError(t, err)

	assert.False(t, result.Verified)
	assert.Equal(t, []int64{2, 3}, result.TamperedLogIDs)
}

func TestVerifyIntegrity_FromMidChain(t *testing.T) {
	st := memory.New()
	appendEntries(t, st, 6)

	v := audit.NewVerifier(st, logger.NewNop())
	result, err := v.VerifyIntegrity(context.Background(), 4)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Equal(t, 3, result.EntriesChecked)
}

func TestRecorder_SwallowsNothingOnSuccess(t *testing.T) {
	st := memory.New()
	rec := audit.NewRecorder(st, logger.NewNop())

	rec.Record(context.Background(), model.AuditLogEntry{
		Timestamp: time.Now().UTC(),
		UserID:    uuid.New(),
		Action:    model.AuditBidRejected,
		NewValue:  "42.00",
	})

	entries, err := st.AuditEntries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditBidRejected, entries[0].Action)
	assert.NotEmpty(t, entries[0].CurrentHash)
}
