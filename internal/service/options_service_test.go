package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

type fakeOptionStore struct {
	mu    sync.Mutex
	lists map[catalog.OptionKind][]domain.Option
	fail  map[catalog.OptionKind]error
	calls map[catalog.OptionKind]int
}

func newFakeOptionStore() *fakeOptionStore {
	return &fakeOptionStore{
		lists: map[catalog.OptionKind][]domain.Option{},
		fail:  map[catalog.OptionKind]error{},
		calls: map[catalog.OptionKind]int{},
	}
}

func (f *fakeOptionStore) ListOptions(_ context.Context, _ string, kind catalog.OptionKind) ([]domain.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if err := f.fail[kind]; err != nil {
		return nil, err
	}
	return f.lists[kind], nil
}

func (f *fakeOptionStore) setFail(kind catalog.OptionKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = err
}

func (f *fakeOptionStore) count(kind catalog.OptionKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type memOptionsCache struct {
	mu   sync.Mutex
	data map[string][]domain.Option
}

func newMemOptionsCache() *memOptionsCache {
	return &memOptionsCache{data: map[string][]domain.Option{}}
}

func (c *memOptionsCache) Get(_ context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts, ok := c.data[tenantID+"/"+string(kind)]
	return opts, ok
}

func (c *memOptionsCache) Set(_ context.Context, tenantID string, kind catalog.OptionKind, opts []domain.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[tenantID+"/"+string(kind)] = opts
}

func (c *memOptionsCache) has(tenantID string, kind catalog.OptionKind) bool {
	_, ok := c.Get(context.Background(), tenantID, kind)
	return ok
}

func TestOptionsService_CombinedPartners(t *testing.T) {
	store := newFakeOptionStore()
	store.lists[catalog.OptionsTenants] = []domain.Option{{ID: "r1", Label: "Anna Schmidt", Value: "r1"}}
	store.lists[catalog.OptionsBusinessPartners] = []domain.Option{
		{ID: "b1", Label: "Stadtwerke", Value: "b1"},
		{ID: "b2", Label: "Hausverwaltung", Value: "b2"},
	}
	svc := NewOptionsService(store, nil, discardLogger())

	opts, err := svc.Options(context.Background(), "t1", catalog.OptionsCombinedPartners)
	require.NoError(t, err)
	assert.Equal(t, []domain.Option{
		{ID: "r1", Label: "Anna Schmidt (Tenant)", Value: `{"partnerId":"r1","partnerType":"tenant"}`, Type: catalog.PartnerTenant},
		{ID: "b1", Label: "Stadtwerke (Business)", Value: `{"partnerId":"b1","partnerType":"business_partner"}`, Type: catalog.PartnerBusinessPartner},
		{ID: "b2", Label: "Hausverwaltung (Business)", Value: `{"partnerId":"b2","partnerType":"business_partner"}`, Type: catalog.PartnerBusinessPartner},
	}, opts)
}

func TestOptionsService_CombinedPartnersFailWithEitherSource(t *testing.T) {
	store := newFakeOptionStore()
	store.lists[catalog.OptionsTenants] = []domain.Option{{ID: "r1", Label: "Anna", Value: "r1"}}
	store.fail[catalog.OptionsBusinessPartners] = &pq.Error{Code: "42883", Message: "function does not exist"}
	cache := newMemOptionsCache()
	svc := NewOptionsService(store, cache, discardLogger())

	_, err := svc.Options(context.Background(), "t1", catalog.OptionsCombinedPartners)
	require.Error(t, err)
	assert.False(t, cache.has("t1", catalog.OptionsCombinedPartners))
}

func TestOptionsService_ReadThroughCache(t *testing.T) {
	store := newFakeOptionStore()
	store.lists[catalog.OptionsProperties] = []domain.Option{{ID: "p1", Label: "Lindenhof", Value: "p1"}}
	cache := newMemOptionsCache()
	svc := NewOptionsService(store, cache, discardLogger())
	ctx := context.Background()

	for range 3 {
		opts, err := svc.Options(ctx, "t1", catalog.OptionsProperties)
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	}
	assert.Equal(t, 1, store.count(catalog.OptionsProperties))
	assert.True(t, cache.has("t1", catalog.OptionsProperties))

	// cache entries are per tenant
	_, err := svc.Options(ctx, "t2", catalog.OptionsProperties)
	require.NoError(t, err)
	assert.Equal(t, 2, store.count(catalog.OptionsProperties))
}

func TestOptionsService_FailedReadsAreNotCached(t *testing.T) {
	store := newFakeOptionStore()
	store.lists[catalog.OptionsBookingCategories] = []domain.Option{{ID: "Miete", Label: "Miete", Value: "Miete"}}
	store.fail[catalog.OptionsBookingCategories] = &pq.Error{Code: "42P01", Message: "relation does not exist"}
	cache := newMemOptionsCache()
	svc := NewOptionsService(store, cache, discardLogger())
	ctx := context.Background()

	_, err := svc.Options(ctx, "t1", catalog.OptionsBookingCategories)
	require.Error(t, err)
	assert.False(t, cache.has("t1", catalog.OptionsBookingCategories))

	store.setFail(catalog.OptionsBookingCategories, nil)
	opts, err := svc.Options(ctx, "t1", catalog.OptionsBookingCategories)
	require.NoError(t, err)
	assert.Len(t, opts, 1)
	assert.Equal(t, 2, store.count(catalog.OptionsBookingCategories))
}

func TestOptionsService_EmptyListIsCachedNotNil(t *testing.T) {
	store := newFakeOptionStore()
	cache := newMemOptionsCache()
	svc := NewOptionsService(store, cache, discardLogger())

	opts, err := svc.Options(context.Background(), "t1", catalog.OptionsTenants)
	require.NoError(t, err)
	assert.NotNil(t, opts)
	assert.Empty(t, opts)
	assert.True(t, cache.has("t1", catalog.OptionsTenants))
}

func TestOptionsService_UnknownKind(t *testing.T) {
	svc := NewOptionsService(newFakeOptionStore(), nil, discardLogger())
	_, err := svc.Options(context.Background(), "t1", catalog.OptionKind("renters"))
	assert.True(t, errors.Is(err, ErrUnknownOptionKind))
}
