package schema

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	table := NewTable("user", "users", Int("id").PrimaryKey())
	reg.Register(table)

	got, ok := reg.Lookup("user")
	require.True(t, ok)
	assert.Same(t, table, got)

	_, ok = reg.Lookup("ghost")
	assert.False(t, ok)
}

func TestRegistryIgnoresUnusableTables(t *testing.T) {
	reg := NewRegistry()
	reg.Register(nil)
	reg.Register(&Table{Name: "orphans"})

	assert.Empty(t, reg.All())
}

func TestRegistryReplacesOnReregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewTable("user", "users", Int("id").PrimaryKey()))

	wider := NewTable("user", "users", Int("id").PrimaryKey(), Text("email"))
	reg.Register(wider)

	got, ok := reg.Lookup("user")
	require.True(t, ok)
	assert.Same(t, wider, got)
	assert.Len(t, reg.All(), 1)
}

func TestRegistryAllSortedByKind(t *testing.T) {
	reg := NewRegistry()
	for _, kind := range []string{"post", "user", "comment"} {
		reg.Register(NewTable(kind, kind+"s", Int("id").PrimaryKey()))
	}

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "comment", all[0].Kind)
	assert.Equal(t, "post", all[1].Kind)
	assert.Equal(t, "user", all[2].Kind)
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewTable("user", "users", Int("id").PrimaryKey()))
	reg.Clear()

	_, ok := reg.Lookup("user")
	assert.False(t, ok)
	assert.Empty(t, reg.All())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			reg.Register(NewTable(fmt.Sprintf("kind%d", n), "t", Int("id").PrimaryKey()))
		}(i)
		go func(n int) {
			defer wg.Done()
			reg.Lookup(fmt.Sprintf("kind%d", n))
			reg.All()
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.All(), 8)
}
