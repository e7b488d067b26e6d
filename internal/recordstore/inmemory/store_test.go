package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
	"github.com/stretchr/testify/require"
)

const testAccount = reports.Account("1234.12345678")

func appendAll(t *testing.T, s *Store, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		require.NoError(t, s.Append(context.Background(), testAccount, reports.PendingRecord(p)))
	}
}

func strs(records []reports.PendingRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r)
	}
	return out
}

func TestDrainAll_StagesUntilAck(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	appendAll(t, s, "1", "2")

	batch, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	require.NotEmpty(t, batch.ID)
	require.Equal(t, []string{"1", "2"}, strs(batch.Records))
	require.Equal(t, 1, s.Staged(testAccount))

	require.NoError(t, s.Ack(ctx, testAccount, batch.ID))
	require.Zero(t, s.Staged(testAccount))

	empty, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	require.Empty(t, empty.ID)
	require.NotNil(t, empty.Records)
	require.Empty(t, empty.Records)
}

func TestRequeue_PutsBatchBackAtTheHead(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	appendAll(t, s, "1", "2")

	batch, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	appendAll(t, s, "3")

	require.NoError(t, s.Requeue(ctx, testAccount, batch.ID))
	require.NoError(t, s.Requeue(ctx, testAccount, batch.ID))

	again, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, strs(again.Records))
}

func TestDrainAll_RecoversExpiredBatchesFirst(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithLease(time.Minute), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	appendAll(t, s, "1", "2")
	_, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	appendAll(t, s, "3")

	// Still leased to the first drain.
	leased, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, strs(leased.Records))
	require.NoError(t, s.Requeue(ctx, testAccount, leased.ID))

	accounts, err := s.PendingAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []reports.Account{testAccount}, accounts)

	clock = clock.Add(2 * time.Minute)
	recovered, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, strs(recovered.Records))
	require.Equal(t, 1, s.Staged(testAccount))
}

func TestPendingAccounts_IncludesExpiredStagedBatches(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithLease(time.Minute), WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	appendAll(t, s, "1")
	_, err := s.DrainAll(ctx, testAccount)
	require.NoError(t, err)

	accounts, err := s.PendingAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	clock = clock.Add(time.Minute)
	accounts, err = s.PendingAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []reports.Account{testAccount}, accounts)
}
