package operation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, id string, kind Kind, template string) *Descriptor {
	t.Helper()
	d, err := New(id, kind, template, noop)
	require.NoError(t, err)
	return d
}

func TestRegistry_GetList(t *testing.T) {
	r, err := NewRegistry(mustNew(t, "b", Query, "b operation"), mustNew(t, "a", Command, "a operation"))
	require.NoError(t, err)

	_, err = NewRegistry(mustNew(t, "a", Command, "a operation"), mustNew(t, "a", Query, "again"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	d, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, Command, d.Kind())
	_, ok = r.Get("missing")
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID())
	assert.Equal(t, "b", list[1].ID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_LoadSwapsWholesale(t *testing.T) {
	r, err := NewRegistry(mustNew(t, "old", Query, "old"))
	require.NoError(t, err)

	require.NoError(t, r.Load([]*Descriptor{mustNew(t, "new", Query, "new")}))
	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("new")
	assert.True(t, ok)

	// A bad set leaves the current one in place
	dup := mustNew(t, "x", Query, "x")
	err = r.Load([]*Descriptor{dup, dup})
	require.Error(t, err)
	_, ok = r.Get("new")
	assert.True(t, ok)

	require.Error(t, r.Load([]*Descriptor{nil}))
}

func TestRegistry_ConcurrentLoadAndRead(t *testing.T) {
	setA := []*Descriptor{mustNew(t, "a1", Query, "a"), mustNew(t, "a2", Query, "a")}
	setB := []*Descriptor{mustNew(t, "b1", Query, "b"), mustNew(t, "b2", Query, "b")}
	r, err := NewRegistry(setA...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					_ = r.Load(setA)
				} else {
					_ = r.Load(setB)
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				list := r.List()
				// Never a mix of the two sets
				if !assert.Len(t, list, 2) {
					return
				}
				assert.Equal(t, list[0].ID()[0], list[1].ID()[0], fmt.Sprint(list[0].ID(), list[1].ID()))
			}
		}()
	}
	wg.Wait()
}
