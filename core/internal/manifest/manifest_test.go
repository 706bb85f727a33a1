package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("string fields", func(t *testing.T) {
		v, err := Parse([]byte(`{"main":"./lib/axios","name":"axios"}`))
		require.NoError(t, err)

		main, ok := v.StringField("main")
		assert.True(t, ok)
		assert.Equal(t, "./lib/axios", main)

		_, ok = v.StringField("missing")
		assert.False(t, ok)
	})

	t.Run("key order preserved", func(t *testing.T) {
		v, err := Parse([]byte(`{"exports":{"import":"./esm.js","require":"./cjs.js","default":"./idx.js"}}`))
		require.NoError(t, err)

		exports, ok := v.Field("exports")
		require.True(t, ok)
		assert.Equal(t, KindObject, exports.Kind())
		assert.Equal(t, []string{"import", "require", "default"}, exports.Keys())
	})

	t.Run("nested objects", func(t *testing.T) {
		v, err := Parse([]byte(`{"exports":{".":{"require":"./cjs/index.js"}}}`))
		require.NoError(t, err)

		exports, _ := v.Field("exports")
		dot, ok := exports.Field(".")
		require.True(t, ok)
		target, ok := dot.StringField("require")
		assert.True(t, ok)
		assert.Equal(t, "./cjs/index.js", target)
	})

	t.Run("non-string values become other", func(t *testing.T) {
		v, err := Parse([]byte(`{"version":3,"files":["a","b"],"private":true,"bin":null}`))
		require.NoError(t, err)

		for _, key := range []string{"version", "files", "private", "bin"} {
			f, ok := v.Field(key)
			require.True(t, ok, key)
			assert.Equal(t, KindOther, f.Kind(), key)
		}
	})

	t.Run("duplicate keys keep last value and first position", func(t *testing.T) {
		v, err := Parse([]byte(`{"main":"a.js","other":"x","main":"b.js"}`))
		require.NoError(t, err)

		assert.Equal(t, []string{"main", "other"}, v.Keys())
		main, _ := v.StringField("main")
		assert.Equal(t, "b.js", main)
	})

	t.Run("empty object", func(t *testing.T) {
		v, err := Parse([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, KindObject, v.Kind())
		assert.Empty(t, v.Keys())
	})

	t.Run("errors", func(t *testing.T) {
		for name, input := range map[string]string{
			"empty":           ``,
			"truncated":       `{"main":`,
			"top-level array": `["a"]`,
			"bare string":     `"main"`,
			"garbage":         `not json`,
			"trailing data":   `{} {}`,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := Parse([]byte(input))
				assert.Error(t, err)
			})
		}
	})
}
