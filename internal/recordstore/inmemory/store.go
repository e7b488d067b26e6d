package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
	"github.com/google/uuid"
)

// DefaultLease is how long a drained batch stays reserved for the drain that
// took it before another drain may fold it back in.
const DefaultLease = 5 * time.Minute

// Store is an in-memory implementation of reports.RecordStore.
// A single mutex makes DrainAll atomic with respect to Append, which is the
// guarantee the Redis store gets from running its drain as a script.
// Data is lost on restart; use it for tests and local development.
type Store struct {
	mu      sync.Mutex
	pending map[reports.Account][]reports.PendingRecord
	staged  map[string]*stagedBatch
	links   map[reports.Account]map[string]struct{}
	seq     int

	lease time.Duration
	now   func() time.Time
}

type stagedBatch struct {
	account   reports.Account
	drainedAt time.Time
	seq       int
	records   []reports.PendingRecord
}

// Option customises a Store.
type Option func(*Store)

// WithLease sets how long a staged batch is reserved for its drain.
func WithLease(lease time.Duration) Option {
	return func(s *Store) { s.lease = lease }
}

// WithClock overrides the time source used for staging leases.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new in-memory record store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		pending: make(map[reports.Account][]reports.PendingRecord),
		staged:  make(map[string]*stagedBatch),
		links:   make(map[reports.Account]map[string]struct{}),
		lease:   DefaultLease,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a record to the end of the account's pending list, the way
// the upstream producer does.
func (s *Store) Append(ctx context.Context, account reports.Account, record reports.PendingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[account] = append(s.pending[account], clone(record))
	return nil
}

// DrainAll implements reports.RecordStore.
func (s *Store) DrainAll(ctx context.Context, account reports.Account) (reports.Batch, error) {
	if err := ctx.Err(); err != nil {
		return reports.Batch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var records []reports.PendingRecord
	for _, id := range s.expiredLocked(account, now) {
		records = append(records, s.staged[id].records...)
		delete(s.staged, id)
	}
	records = append(records, s.pending[account]...)
	delete(s.pending, account)

	if len(records) == 0 {
		return reports.Batch{Records: []reports.PendingRecord{}}, nil
	}

	id := uuid.NewString()
	s.seq++
	s.staged[id] = &stagedBatch{account: account, drainedAt: now, seq: s.seq, records: records}

	out := make([]reports.PendingRecord, len(records))
	for i, r := range records {
		out[i] = clone(r)
	}
	return reports.Batch{ID: id, Records: out}, nil
}

// expiredLocked returns the account's staged batches whose lease ran out,
// oldest drain first.
func (s *Store) expiredLocked(account reports.Account, now time.Time) []string {
	cutoff := now.Add(-s.lease)

	var ids []string
	for id, b := range s.staged {
		if b.account == account && !b.drainedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.staged[ids[i]].seq < s.staged[ids[j]].seq })
	return ids
}

// Ack implements reports.RecordStore.
func (s *Store) Ack(ctx context.Context, account reports.Account, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.staged[batchID]; ok && b.account == account {
		delete(s.staged, batchID)
	}
	return nil
}

// Requeue implements reports.RecordStore.
func (s *Store) Requeue(ctx context.Context, account reports.Account, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.staged[batchID]
	if !ok || b.account != account {
		return nil
	}
	delete(s.staged, batchID)

	s.pending[account] = append(b.records, s.pending[account]...)
	return nil
}

// RecordLink implements reports.RecordStore.
func (s *Store) RecordLink(ctx context.Context, account reports.Account, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.links[account]
	if !ok {
		set = make(map[string]struct{})
		s.links[account] = set
	}
	set[link] = struct{}{}
	return nil
}

// ListLinks implements reports.RecordStore. Links are returned sorted.
func (s *Store) ListLinks(ctx context.Context, account reports.Account) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := make([]string, 0, len(s.links[account]))
	for link := range s.links[account] {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}

// Staged returns the number of batches currently staged for account.
func (s *Store) Staged(account reports.Account) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, b := range s.staged {
		if b.account == account {
			n++
		}
	}
	return n
}

// PendingAccounts implements reports.AccountScanner.
func (s *Store) PendingAccounts(ctx context.Context) ([]reports.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[reports.Account]bool)
	for account, records := range s.pending {
		if len(records) > 0 {
			seen[account] = true
		}
	}
	cutoff := s.now().Add(-s.lease)
	for _, b := range s.staged {
		if !b.drainedAt.After(cutoff) {
			seen[b.account] = true
		}
	}

	accounts := make([]reports.Account, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts, nil
}

func clone(r reports.PendingRecord) reports.PendingRecord {
	return append(reports.PendingRecord(nil), r...)
}

// Ensure Store implements the record store interfaces.
var _ reports.RecordStore = (*Store)(nil)
var _ reports.AccountScanner = (*Store)(nil)
