package patient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caio-healthchain/ms-patients/pkg/types"
)

func TestCacheKeyBuilders(t *testing.T) {
	assert.Equal(t, "patient:id:abc-123", cacheKeyID("abc-123"))
	assert.Equal(t, "patient:cpf:52998224725", cacheKeyCPF("52998224725"))
	assert.Equal(t, "patient:mrn:MRN-001", cacheKeyMRN("MRN-001"))
	assert.Equal(t, "patient:search:*", cacheKeySearchPattern())
}

func TestCacheKeySearchIsStable(t *testing.T) {
	filters := &types.SearchFilters{Name: "maria", Status: "active"}
	pagination := &types.Pagination{Page: 1, Limit: 10}

	first := cacheKeySearch(filters, pagination)
	second := cacheKeySearch(
		&types.SearchFilters{Name: "maria", Status: "active"},
		&types.Pagination{Page: 1, Limit: 10},
	)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "patient:search:"))
}

func TestCacheKeySearchDistinguishesPagesAndFilters(t *testing.T) {
	filters := &types.SearchFilters{Name: "maria"}
	pageOne := cacheKeySearch(filters, &types.Pagination{Page: 1, Limit: 10})
	pageTwo := cacheKeySearch(filters, &types.Pagination{Page: 2, Limit: 10})
	otherName := cacheKeySearch(&types.SearchFilters{Name: "jose"}, &types.Pagination{Page: 1, Limit: 10})

	assert.NotEqual(t, pageOne, pageTwo)
	assert.NotEqual(t, pageOne, otherName)
	assert.True(t, strings.HasSuffix(cacheKeySearchPattern(), "*"),
		"invalidation pattern must cover every search signature")
}

func TestNoopCacheNeverHits(t *testing.T) {
	cache := NewNoopCache()
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "patient:id:abc", &types.PatientProjection{ID: "abc"}, time.Hour))

	var dest types.PatientProjection
	hit, err := cache.Get(ctx, "patient:id:abc", &dest)

	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Invalidate(ctx, cacheKeySearchPattern()))
}
