package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/shared"
	"github.com/formosa-data/formosa/internal/xbrl"
)

type fakeStore struct {
	mu       sync.Mutex
	reports  map[Key]*Statement
	saveErr  error
	saves    atomic.Int64
	getCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[Key]*Statement)}
}

func (f *fakeStore) Get(_ context.Context, key Key) (*Statement, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	stmt, ok := f.reports[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *stmt
	return &copied, nil
}

func (f *fakeStore) Save(_ context.Context, stmt *Statement) error {
	f.saves.Add(1)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stmt.FetchedAt = time.Now().UTC()
	copied := *stmt
	f.reports[stmt.Key()] = &copied
	return nil
}

func (f *fakeStore) GetFactValue(_ context.Context, key Key, concept string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stmt, ok := f.reports[key]
	if !ok {
		return decimal.Decimal{}, shared.ErrNotFound
	}
	for _, item := range stmt.Flatten() {
		if item.Concept == concept && item.Value != nil {
			return *item.Value, nil
		}
	}
	return decimal.Decimal{}, shared.ErrNotFound
}

func (f *fakeStore) ListAvailable(_ context.Context, stockID string) ([]AvailableReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AvailableReport
	for key, stmt := range f.reports {
		if key.StockID == stockID {
			out = append(out, AvailableReport{
				StockID: key.StockID, Year: key.Year, Quarter: key.Quarter,
				ReportType: key.ReportType, FetchedAt: stmt.FetchedAt,
			})
		}
	}
	return out, nil
}

type fakeDownloader struct {
	fetches   atomic.Int64
	delay     time.Duration
	failTimes int
	failWith  error
	content   []byte
}

func (f *fakeDownloader) DownloadXBRL(ctx context.Context, _ string, _, _ int, _ bool) ([]byte, error) {
	n := f.fetches.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if int(n) <= f.failTimes {
		return nil, f.failWith
	}
	return f.content, nil
}

type fakeParser struct {
	pkg *xbrl.Package
}

func (f *fakeParser) Parse(_ []byte) (*xbrl.Package, error) {
	return f.pkg, nil
}

func testKey() Key {
	return Key{StockID: "2330", Year: 113, Quarter: 3, ReportType: TypeIncomeStatement}
}

func newTestService(t *testing.T, store Store, dl Downloader) *Service {
	t.Helper()
	return NewService(store, dl, &fakeParser{pkg: incomePackage()}, nil, nil, nil, nil)
}

func TestGetStatementCachesOnFirstFetch(t *testing.T) {
	store := newFakeStore()
	dl := &fakeDownloader{content: []byte("PK fake")}
	svc := newTestService(t, store, dl)

	stmt, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-30", stmt.ReportDate)
	assert.Equal(t, int64(1), dl.fetches.Load())

	// Second call is served from the store.
	again, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dl.fetches.Load())
	assert.Equal(t, stmt.ReportDate, again.ReportDate)
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	store := newFakeStore()
	dl := &fakeDownloader{content: []byte("PK fake"), delay: 50 * time.Millisecond}
	svc := newTestService(t, store, dl)

	const callers = 20
	results := make([]*Statement, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetStatement(context.Background(), testKey(), false)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), dl.fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ReportDate, results[i].ReportDate)
		assert.Len(t, results[i].Items, len(results[0].Items))
	}
}

func TestForceRefreshAlwaysFetches(t *testing.T) {
	store := newFakeStore()
	dl := &fakeDownloader{content: []byte("PK fake")}
	svc := newTestService(t, store, dl)

	first, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	firstFetched := first.FetchedAt

	time.Sleep(5 * time.Millisecond)
	refreshed, err := svc.GetStatement(context.Background(), testKey(), true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), dl.fetches.Load())
	assert.True(t, refreshed.FetchedAt.After(firstFetched),
		"fetched_at must advance on force refresh")
}

func TestTransientErrorsAreRetried(t *testing.T) {
	old := retryBackoff
	retryBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryBackoff = old }()

	store := newFakeStore()
	dl := &fakeDownloader{
		content:   []byte("PK fake"),
		failTimes: 2,
		failWith:  mops.ErrTransient,
	}
	svc := newTestService(t, store, dl)

	_, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dl.fetches.Load())
}

func TestTransientErrorsExhaustRetries(t *testing.T) {
	old := retryBackoff
	retryBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryBackoff = old }()

	store := newFakeStore()
	dl := &fakeDownloader{failTimes: 99, failWith: mops.ErrTransient}
	svc := newTestService(t, store, dl)

	_, err := svc.GetStatement(context.Background(), testKey(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	assert.Equal(t, int64(3), dl.fetches.Load())
}

func TestNotFoundIsNotRetried(t *testing.T) {
	store := newFakeStore()
	dl := &fakeDownloader{failTimes: 99, failWith: mops.ErrNotFound}
	svc := newTestService(t, store, dl)

	_, err := svc.GetStatement(context.Background(), testKey(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, int64(1), dl.fetches.Load())
}

func TestStorageFailureStillReturnsFreshResult(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	dl := &fakeDownloader{content: []byte("PK fake")}
	svc := newTestService(t, store, dl)

	stmt, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, stmt.Items)
	assert.Equal(t, int64(1), store.saves.Load())
}

func TestHotCacheServesWithoutStoreLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newFakeStore()
	dl := &fakeDownloader{content: []byte("PK fake")}
	svc := NewService(store, dl, &fakeParser{pkg: incomePackage()}, nil, rdb, nil, nil)

	_, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	storeReads := store.getCalls.Load()

	_, err = svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)
	assert.Equal(t, storeReads, store.getCalls.Load())
	assert.Equal(t, int64(1), dl.fetches.Load())
}

func TestGetStatementValidatesKey(t *testing.T) {
	svc := newTestService(t, newFakeStore(), &fakeDownloader{})

	_, err := svc.GetStatement(context.Background(), Key{StockID: "!!", Year: 113, Quarter: 1, ReportType: TypeBalanceSheet}, false)
	assert.Error(t, err)

	_, err = svc.GetStatement(context.Background(), Key{StockID: "2330", Year: 50, Quarter: 1, ReportType: TypeBalanceSheet}, false)
	assert.Error(t, err)

	_, err = svc.GetStatement(context.Background(), Key{StockID: "2330", Year: 113, Quarter: 5, ReportType: TypeBalanceSheet}, false)
	assert.Error(t, err)

	_, err = svc.GetStatement(context.Background(), Key{StockID: "2330", Year: 113, Quarter: 1, ReportType: "weird"}, false)
	assert.Error(t, err)
}

func TestGetFactValue(t *testing.T) {
	store := newFakeStore()
	dl := &fakeDownloader{content: []byte("PK fake")}
	svc := newTestService(t, store, dl)

	_, err := svc.GetStatement(context.Background(), testKey(), false)
	require.NoError(t, err)

	value, err := svc.GetFactValue(context.Background(), testKey(), "Revenue")
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(2025847000)))

	_, err = svc.GetFactValue(context.Background(), testKey(), "NoSuchConcept")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
