package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeepCloneMap_IndependentCopy(t *testing.T) {
	now := time.Now()
	src := map[string]interface{}{
		"name":  "extract",
		"count": 3,
		"nested": map[string]interface{}{
			"enabled": true,
		},
		"tags": []interface{}{"a", "b"},
		"at":   now,
	}

	clone := DeepCloneMap(src)
	assert.Equal(t, src, clone)

	// Mutations on the original must not leak into the clone
	src["name"] = "changed"
	src["nested"].(map[string]interface{})["enabled"] = false
	src["tags"].([]interface{})[0] = "z"

	assert.Equal(t, "extract", clone["name"])
	assert.Equal(t, true, clone["nested"].(map[string]interface{})["enabled"])
	assert.Equal(t, "a", clone["tags"].([]interface{})[0])
	assert.Equal(t, now, clone["at"])
}

func TestDeepCloneMap_Nil(t *testing.T) {
	assert.Nil(t, DeepCloneMap(nil))
}

func TestDeepCloneMap_StringSlice(t *testing.T) {
	src := map[string]interface{}{"urls": []string{"one", "two"}}
	clone := DeepCloneMap(src)

	src["urls"].([]string)[0] = "mutated"
	assert.Equal(t, "one", clone["urls"].([]string)[0])
}
