package storage

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to OGC_TEST_DATABASE_DSN or skips.
func newTestClient(t *testing.T) *PostgresClient {
	t.Helper()
	dsn := os.Getenv("OGC_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("OGC_TEST_DATABASE_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	p := &PostgresClient{pool: pool}
	require.NoError(t, p.EnsureSchema(ctx))
	return p
}

func TestJournalRoundTrip(t *testing.T) {
	p := newTestClient(t)
	ctx := context.Background()
	session := uuid.New()

	for i, line := range []string{"G28", "G0 X10", "M104 T0 S200"} {
		rec := InstructionRecord{
			SessionID: session,
			Code:      line[:3],
			Line:      line,
			Response:  "ok",
			Status:    StatusOK,
			Duration:  time.Duration(i+1) * time.Millisecond,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, p.RecordInstruction(ctx, rec))
	}

	records, err := p.ListInstructions(ctx, session, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "G0 X10", records[0].Line)
	assert.Equal(t, "M104 T0 S200", records[1].Line)
	assert.Equal(t, 3*time.Millisecond, records[1].Duration)
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := newTestClient(t)
	ctx := context.Background()

	state := json.RawMessage(`{"tool":{"active":1}}`)
	id, err := p.SaveSnapshot(ctx, uuid.New(), "before purge", state)
	require.NoError(t, err)

	snap, err := p.LoadSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "before purge", snap.Label)
	assert.JSONEq(t, `{"tool":{"active":1}}`, string(snap.State))

	_, err = p.LoadSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrLookup)
}
