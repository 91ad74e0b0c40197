package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
)

type (
	MockFetcher struct {
		mock.Mock
		name string
	}

	MockListingFetcher struct {
		MockFetcher
	}

	MockStorage struct {
		mock.Mock
		name string
	}

	// stubProvider serves static rate maps per base.
	stubProvider struct {
		name   string
		rates  map[string]currency.Rates
		cached bool

		mu    sync.Mutex
		calls map[string]int
	}

	// panicProvider fails the test run if the converter reaches it.
	panicProvider struct{}

	countingFetcher struct {
		name  string
		rates currency.Rates
		calls int32
		delay time.Duration
	}

	// blockingFetcher holds every Fetch until release is closed or ctx is done.
	blockingFetcher struct {
		started chan struct{}
		release chan struct{}
		once    sync.Once
		calls   int32
	}

	failingBackend struct{}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryRatesCache() (*cache.RatesCache, *cache.MemoryBackend) {
	backend := cache.NewMemoryBackend()

	return cache.NewRatesCache(backend, cache.Config{}, discardLogger()), backend
}

func (m *MockFetcher) Name() string {
	return m.name
}

func (m *MockFetcher) IsConfigValid() bool {
	return true
}

func (m *MockFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	args := m.Called(ctx, base)

	return args.Get(0).(currency.RatesResponse), args.Error(1)
}

func (m *MockListingFetcher) SupportedCurrencies(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return1 := args.Get(0)

	if return1 == nil {
		return nil, args.Error(1)
	}

	return return1.([]string), args.Error(1)
}

func (m *MockStorage) Store(currencies []currency.Currency) ([]currency.CurrencyWithID, error) {
	args := m.Called(currencies)
	return1 := args.Get(0)

	if return1 == nil {
		return nil, args.Error(1)
	}

	return return1.([]currency.CurrencyWithID), args.Error(1)
}

func (m *MockStorage) Get(from, to string, page, perPage int64) ([]currency.CurrencyWithID, error) {
	args := m.Called(from, to, page, perPage)

	return args.Get(0).([]currency.CurrencyWithID), args.Error(1)
}

func (m *MockStorage) GetByProvider(from, to string, provider currency.Provider, page, perPage int64) ([]currency.CurrencyWithID, error) {
	args := m.Called(from, to, provider, page, perPage)

	return args.Get(0).([]currency.CurrencyWithID), args.Error(1)
}

func (m *MockStorage) GetByDate(from, to string, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	args := m.Called(from, to, start, end, page, perPage)

	return args.Get(0).([]currency.CurrencyWithID), args.Error(1)
}

func (m *MockStorage) GetByDateAndProvider(from, to string, provider currency.Provider, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	args := m.Called(from, to, provider, start, end, page, perPage)
	return1 := args.Get(0)

	if return1 == nil {
		return nil, args.Error(1)
	}

	return return1.([]currency.CurrencyWithID), args.Error(1)
}

func (m *MockStorage) GetStorageProviderName() string {
	if m.name == "" {
		return "MockStorage"
	}

	return m.name
}

func (m *MockStorage) Migrate() error {
	return nil
}

func (m *MockStorage) Drop() error {
	return nil
}

func (m *MockStorage) Close() error {
	return nil
}

func newStubProvider(rates map[string]currency.Rates) *stubProvider {
	return &stubProvider{name: "Stub", rates: rates, calls: make(map[string]int)}
}

func (s *stubProvider) Name() string {
	return s.name
}

func (s *stubProvider) IsConfigValid() bool {
	return true
}

func (s *stubProvider) GetExchangeRates(_ context.Context, base string) currency.RatesResponse {
	s.mu.Lock()
	s.calls[base]++
	s.mu.Unlock()

	rates, ok := s.rates[base]
	if !ok {
		return currency.RatesResponse{Success: false, Base: base, Error: "unsupported base " + base}
	}

	return currency.RatesResponse{Success: true, Base: base, Date: "2024-01-02", Rates: rates.Clone()}
}

func (s *stubProvider) RefreshRates(ctx context.Context, base string) currency.RatesResponse {
	return s.GetExchangeRates(ctx, base)
}

func (s *stubProvider) IsRatesCached(context.Context, string) bool {
	return s.cached
}

func (s *stubProvider) GetRatesCacheTTL(context.Context, string) time.Duration {
	return cache.NoExpiry
}

func (s *stubProvider) Calls(base string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[base]
}

func (panicProvider) Name() string {
	panic("provider must not be used")
}

func (panicProvider) IsConfigValid() bool {
	panic("provider must not be used")
}

func (panicProvider) GetExchangeRates(context.Context, string) currency.RatesResponse {
	panic("provider must not be used")
}

func (panicProvider) RefreshRates(context.Context, string) currency.RatesResponse {
	panic("provider must not be used")
}

func (panicProvider) IsRatesCached(context.Context, string) bool {
	panic("provider must not be used")
}

func (panicProvider) GetRatesCacheTTL(context.Context, string) time.Duration {
	panic("provider must not be used")
}

func (c *countingFetcher) Name() string {
	return c.name
}

func (c *countingFetcher) IsConfigValid() bool {
	return true
}

func (c *countingFetcher) Fetch(_ context.Context, base string) (currency.RatesResponse, error) {
	atomic.AddInt32(&c.calls, 1)
	time.Sleep(c.delay)

	return currency.RatesResponse{Success: true, Base: base, Date: "2024-01-02", Rates: c.rates.Clone()}, nil
}

func (c *countingFetcher) Calls() int {
	return int(atomic.LoadInt32(&c.calls))
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingFetcher) Name() string {
	return "Blocking"
}

func (b *blockingFetcher) IsConfigValid() bool {
	return true
}

func (b *blockingFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	atomic.AddInt32(&b.calls, 1)
	b.once.Do(func() { close(b.started) })

	select {
	case <-b.release:
	case <-ctx.Done():
		return currency.RatesResponse{}, ctx.Err()
	}

	res := usdResponse()
	res.Base = base

	return res, nil
}

func (b *blockingFetcher) Calls() int {
	return int(atomic.LoadInt32(&b.calls))
}

var errBackendDown = errors.New("connection refused")

func (failingBackend) Get(context.Context, string) (string, error) {
	return "", errBackendDown
}

func (failingBackend) Set(context.Context, string, string, time.Duration) error {
	return errBackendDown
}

func (failingBackend) Del(context.Context, ...string) error {
	return errBackendDown
}

func (failingBackend) Exists(context.Context, string) (bool, error) {
	return false, errBackendDown
}

func (failingBackend) TTL(context.Context, string) (time.Duration, error) {
	return cache.NoExpiry, errBackendDown
}

func (failingBackend) Keys(context.Context, string) ([]string, error) {
	return nil, errBackendDown
}
