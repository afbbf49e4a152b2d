package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confhub/confbot/internal/domain"
)

func TestStorePutOverwrites(t *testing.T) {
	s := NewStore()

	s.Put(1, []int64{10, 20, 30}, 2, "party", false)
	s.Put(1, []int64{40}, 0, "", true)

	sess, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{40}, sess.EventIDs)
	assert.Equal(t, 0, sess.Page)
	assert.Equal(t, "", sess.Tag)
	assert.True(t, sess.MyList)
}

func TestStoreGetMiss(t *testing.T) {
	s := NewStore()
	_, err := s.Get(99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStoreSetPage(t *testing.T) {
	s := NewStore()
	s.Put(7, []int64{1, 2, 3}, 0, "workshop", false)

	require.NoError(t, s.SetPage(7, 4))
	sess, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, 4, sess.Page)
	assert.Equal(t, "workshop", sess.Tag)

	assert.True(t, errors.Is(s.SetPage(8, 1), domain.ErrNotFound))
}

func TestStoreCopiesSlices(t *testing.T) {
	s := NewStore()
	ids := []int64{1, 2, 3}
	s.Put(1, ids, 0, "", false)
	ids[0] = 99

	sess, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, sess.EventIDs)

	// Mutating the returned copy must not touch the stored session either.
	sess.EventIDs[1] = 77
	again, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, again.EventIDs)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			s.Put(n%4, []int64{n}, int(n), "", false)
			s.Get(n % 4)
		}(int64(i))
	}
	wg.Wait()

	// Last-writer-wins per key; every key must hold one of the written values.
	for key := int64(0); key < 4; key++ {
		sess, err := s.Get(key)
		require.NoError(t, err)
		assert.Len(t, sess.EventIDs, 1)
	}
}

func TestUpdateCacheOverwritePerCycle(t *testing.T) {
	c := NewUpdateCache()

	c.Put(5, []int64{42, 43})
	c.Put(5, []int64{44})

	ids, err := c.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []int64{44}, ids)

	_, err = c.Get(6)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
