package ty

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptMerge(t *testing.T) {
	t.Run("unset does not override", func(t *testing.T) {
		a := OptWrap("keep")
		b := Opt[string]{}
		a.Merge(&b)
		assert.Equal(t, "keep", a.Value)
		assert.True(t, a.Set)
	})

	t.Run("set overrides", func(t *testing.T) {
		a := OptWrap("old")
		b := OptWrap("new")
		a.Merge(&b)
		assert.Equal(t, "new", a.Value)
	})

	t.Run("explicit null overrides validity", func(t *testing.T) {
		a := OptWrap(10)
		b := Opt[int]{Set: true, Valid: false}
		a.Merge(&b)
		assert.True(t, a.Set)
		assert.False(t, a.Valid)
	})
}

func TestOptJSON(t *testing.T) {
	type holder struct {
		Size Opt[int] `json:"size"`
	}

	t.Run("absent stays unset", func(t *testing.T) {
		var h holder
		assert.NoError(t, json.Unmarshal([]byte(`{}`), &h))
		assert.False(t, h.Size.Set)
	})

	t.Run("null is set but invalid", func(t *testing.T) {
		var h holder
		assert.NoError(t, json.Unmarshal([]byte(`{"size":null}`), &h))
		assert.True(t, h.Size.Set)
		assert.False(t, h.Size.Valid)
	})

	t.Run("value round trip", func(t *testing.T) {
		var h holder
		assert.NoError(t, json.Unmarshal([]byte(`{"size":50}`), &h))
		assert.Equal(t, 50, h.Size.Value)

		out, err := json.Marshal(h)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"size":50}`, string(out))
	})
}

func TestUniSetAdd(t *testing.T) {
	set := make(UniSet[string])
	set.Add("level", "INFO")
	set.Add("level", "ERROR")
	set.Add("level", "INFO")

	assert.Len(t, set["level"], 2)
	assert.ElementsMatch(t, []string{"INFO", "ERROR"}, set["level"])
}

func TestResolveVars(t *testing.T) {
	vars := map[string]string{"NAMESPACE": "prod"}

	assert.Equal(t, "ns=prod", ResolveVars("ns=${NAMESPACE}", vars))
	assert.Equal(t, "ns=default", ResolveVars("ns=${MISSING:-default}", vars))
	assert.Equal(t, "ns=${MISSING}", ResolveVars("ns=${MISSING}", vars))
}
