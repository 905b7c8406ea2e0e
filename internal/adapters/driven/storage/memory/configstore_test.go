package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

func TestNewConfigStore(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		store := NewConfigStore()

		_, ok := store.Get("anything")
		assert.False(t, ok)
		assert.Equal(t, ":memory:", store.Path())
	})

	t.Run("seeds values", func(t *testing.T) {
		store := NewConfigStore(map[string]any{"root": "."}, map[string]any{"build.concurrency": 2})

		assert.Equal(t, ".", store.GetString("root"))
		assert.Equal(t, 2, store.GetInt("build.concurrency"))
	})

	t.Run("implements ConfigStore", func(t *testing.T) {
		var _ driven.ConfigStore = NewConfigStore()
	})
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"string":  "hello",
		"int":     42,
		"int64":   int64(7),
		"float":   1.5,
		"bool":    true,
		"strings": []string{"a"},
		"any":     []any{"b", 3},
	})

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"string", store.GetString("string"), "hello"},
		{"string wrong type", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 42},
		{"int from int64", store.GetInt("int64"), 7},
		{"int from float", store.GetInt("float"), 1},
		{"int wrong type", store.GetInt("string"), 0},
		{"float", store.GetFloat("float"), 1.5},
		{"float from int", store.GetFloat("int"), 42.0},
		{"float wrong type", store.GetFloat("bool"), 0.0},
		{"string slice", store.GetStringSlice("strings"), []string{"a"}},
		{"string slice from any", store.GetStringSlice("any"), []string{"b"}},
		{"string slice missing", store.GetStringSlice("missing"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestConfigStore_SetSaveLoad(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("key", "original"))
	require.NoError(t, store.Set("key", "updated"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	assert.Equal(t, "updated", store.GetString("key"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("shared", n)
			_ = store.GetInt("shared")
			_ = store.GetFloat("shared")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("shared")
	assert.True(t, ok)
}
