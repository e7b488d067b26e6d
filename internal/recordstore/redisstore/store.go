package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	// DefaultPendingPrefix is the key prefix the producer appends flagged
	// records under.
	DefaultPendingPrefix = "invalida."

	// DefaultLinksPrefix is the key prefix of the per-account link sets.
	DefaultLinksPrefix = "relatorios."

	// DefaultStagingPrefix is the key prefix of drained batches that are not
	// yet acknowledged, and of the per-account index of those batches.
	DefaultStagingPrefix = "processando."

	// DefaultTimeout bounds each Redis round trip.
	DefaultTimeout = 3 * time.Second

	// DefaultLease is how long a drained batch stays reserved for the drain
	// that took it before another drain may fold it back in.
	DefaultLease = 5 * time.Minute

	scanBatch = 100
)

// drainScript moves the pending list into a new staged batch in one step, so
// an append lands either wholly before or wholly after the drain. Batches in
// the index that were drained before the lease cutoff come first, oldest
// drain first.
//
// KEYS: pending list, staging index, new batch list.
// ARGV: lease cutoff (unix ms), now (unix ms).
var drainScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, key in ipairs(expired) do
	local items = redis.call('LRANGE', key, 0, -1)
	for _, item in ipairs(items) do
		redis.call('RPUSH', KEYS[3], item)
	end
	redis.call('DEL', key)
	redis.call('ZREM', KEYS[2], key)
end
if redis.call('EXISTS', KEYS[3]) == 0 then
	if redis.call('EXISTS', KEYS[1]) == 1 then
		redis.call('RENAME', KEYS[1], KEYS[3])
	end
else
	local items = redis.call('LRANGE', KEYS[1], 0, -1)
	for _, item in ipairs(items) do
		redis.call('RPUSH', KEYS[3], item)
	end
	redis.call('DEL', KEYS[1])
end
if redis.call('EXISTS', KEYS[3]) == 0 then
	return {}
end
redis.call('ZADD', KEYS[2], ARGV[2], KEYS[3])
return redis.call('LRANGE', KEYS[3], 0, -1)
`)

// requeueScript pushes a staged batch back onto the head of the pending list
// in its original order and drops it from the index.
//
// KEYS: pending list, staging index, batch list.
var requeueScript = redis.NewScript(`
local items = redis.call('LRANGE', KEYS[3], 0, -1)
for i = #items, 1, -1 do
	redis.call('LPUSH', KEYS[1], items[i])
end
redis.call('DEL', KEYS[3])
redis.call('ZREM', KEYS[2], KEYS[3])
return #items
`)

// Options configures a Store.
type Options struct {
	PendingPrefix string
	LinksPrefix   string
	StagingPrefix string
	Timeout       time.Duration
	Lease         time.Duration
}

// Store is the Redis implementation of reports.RecordStore. Pending records
// live in a list per account, report links in a set per account. A drain
// renames the pending list to a batch list under the staging prefix and
// indexes it in a sorted set scored by drain time.
type Store struct {
	client  redis.UniversalClient
	pending string
	links   string
	staging string
	timeout time.Duration
	lease   time.Duration
	now     func() time.Time
}

// NewStore creates a Store on top of an established client. Zero option
// values fall back to the defaults.
func NewStore(client redis.UniversalClient, opts Options) *Store {
	s := &Store{
		client:  client,
		pending: opts.PendingPrefix,
		links:   opts.LinksPrefix,
		staging: opts.StagingPrefix,
		timeout: opts.Timeout,
		lease:   opts.Lease,
		now:     time.Now,
	}
	if s.pending == "" {
		s.pending = DefaultPendingPrefix
	}
	if s.links == "" {
		s.links = DefaultLinksPrefix
	}
	if s.staging == "" {
		s.staging = DefaultStagingPrefix
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.lease <= 0 {
		s.lease = DefaultLease
	}
	return s
}

// Connect opens a client for addr and verifies it with a PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Connect: ping %s: %w: %v", addr, reports.ErrStoreUnavailable, err)
	}
	return client, nil
}

func (s *Store) pendingKey(account reports.Account) string {
	return s.pending + string(account)
}

func (s *Store) linksKey(account reports.Account) string {
	return s.links + string(account)
}

func (s *Store) indexKey(account reports.Account) string {
	return s.staging + string(account)
}

func (s *Store) batchKey(account reports.Account, batchID string) string {
	return s.staging + string(account) + ":" + batchID
}

// DrainAll implements reports.RecordStore. If the reply is lost the batch
// stays staged, and a drain after the lease expires picks it up again.
func (s *Store) DrainAll(ctx context.Context, account reports.Account) (reports.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	now := s.now()
	keys := []string{s.pendingKey(account), s.indexKey(account), s.batchKey(account, id)}

	vals, err := drainScript.Run(ctx, s.client, keys, now.Add(-s.lease).UnixMilli(), now.UnixMilli()).Slice()
	if err != nil && err != redis.Nil {
		return reports.Batch{}, unavailable("DrainAll", err)
	}

	records := make([]reports.PendingRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			return reports.Batch{}, fmt.Errorf("DrainAll: unexpected list element type %T", v)
		}
		records = append(records, reports.PendingRecord(str))
	}
	if len(records) == 0 {
		return reports.Batch{Records: records}, nil
	}
	return reports.Batch{ID: id, Records: records}, nil
}

// Ack implements reports.RecordStore.
func (s *Store) Ack(ctx context.Context, account reports.Account, batchID string) error {
	if batchID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := s.batchKey(account, batchID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, s.indexKey(account), key)
		return nil
	})
	if err != nil {
		return unavailable("Ack", err)
	}
	return nil
}

// Requeue implements reports.RecordStore.
func (s *Store) Requeue(ctx context.Context, account reports.Account, batchID string) error {
	if batchID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys := []string{s.pendingKey(account), s.indexKey(account), s.batchKey(account, batchID)}
	if err := requeueScript.Run(ctx, s.client, keys).Err(); err != nil && err != redis.Nil {
		return unavailable("Requeue", err)
	}
	return nil
}

// RecordLink implements reports.RecordStore.
func (s *Store) RecordLink(ctx context.Context, account reports.Account, link string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.SAdd(ctx, s.linksKey(account), link).Err(); err != nil {
		return unavailable("RecordLink", err)
	}
	return nil
}

// ListLinks implements reports.RecordStore. Links are returned sorted.
func (s *Store) ListLinks(ctx context.Context, account reports.Account) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	links, err := s.client.SMembers(ctx, s.linksKey(account)).Result()
	if err != nil {
		return nil, unavailable("ListLinks", err)
	}
	sort.Strings(links)
	return links, nil
}

// PendingAccounts implements reports.AccountScanner. Keys under the pending
// prefix that do not hold a well formed account are skipped. Accounts whose
// staging index holds a batch past its lease are included too.
func (s *Store) PendingAccounts(ctx context.Context) ([]reports.Account, error) {
	seen := make(map[reports.Account]bool)

	iter := s.client.Scan(ctx, 0, s.pending+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		account, err := reports.ValidateAccount(strings.TrimPrefix(iter.Val(), s.pending))
		if err != nil {
			continue
		}
		seen[account] = true
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("PendingAccounts", err)
	}

	cutoff := strconv.FormatInt(s.now().Add(-s.lease).UnixMilli(), 10)
	iter = s.client.Scan(ctx, 0, s.staging+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		// Batch lists carry a ":<id>" suffix and fail validation here.
		account, err := reports.ValidateAccount(strings.TrimPrefix(iter.Val(), s.staging))
		if err != nil || seen[account] {
			continue
		}
		n, err := s.client.ZCount(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return nil, unavailable("PendingAccounts", err)
		}
		if n > 0 {
			seen[account] = true
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("PendingAccounts", err)
	}

	accounts := make([]reports.Account, 0, len(seen))
	for account := range seen {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, reports.ErrStoreUnavailable, err)
}

// Ensure Store implements the record store interfaces.
var _ reports.RecordStore = (*Store)(nil)
var _ reports.AccountScanner = (*Store)(nil)
