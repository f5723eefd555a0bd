package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal-api/internal/models"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
)

type cacheRepoStub struct {
	data     map[string][]byte
	ttl      map[string]time.Duration
	patterns []string
	err      error
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (c *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	if c.err != nil {
		return c.err
	}
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.ttl[key] = ttl
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	if c.err != nil {
		return c.err
	}
	c.data = map[string][]byte{}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, NewMetricsService(), 0, nil, true)

	var page articleListPage
	assert.False(t, svc.Get(context.Background(), "articles:list:a", &page))

	svc.Set(context.Background(), "articles:list:a", articleListPage{Pagination: models.Pagination{Page: 1, PageSize: 20, TotalCount: 3}}, 0)
	assert.Equal(t, time.Minute, repo.ttl["articles:list:a"])

	require.True(t, svc.Get(context.Background(), "articles:list:a", &page))
	assert.Equal(t, 3, page.Pagination.TotalCount)

	svc.Invalidate(context.Background(), articleListCacheKeys)
	assert.Equal(t, []string{articleListCacheKeys}, repo.patterns)
	assert.False(t, svc.Get(context.Background(), "articles:list:a", &page))
}

func TestCacheServiceDegradesOnFailure(t *testing.T) {
	repo := newCacheRepoStub()
	repo.err = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Second, nil, true)

	var page articleListPage
	assert.False(t, svc.Get(context.Background(), "k", &page))
	svc.Set(context.Background(), "k", page, 0)
	svc.Invalidate(context.Background(), "k*")
	assert.Equal(t, []string{"k*"}, repo.patterns)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, 0, nil, false)

	assert.False(t, svc.Enabled())
	svc.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, repo.data)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	var dest int
	assert.False(t, nilSvc.Get(context.Background(), "k", &dest))
}
