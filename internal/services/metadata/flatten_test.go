package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/cartograb/internal/models"
)

func TestFlatten(t *testing.T) {
	t.Run("Nested objects join with dots", func(t *testing.T) {
		obj := map[string]interface{}{
			"a": map[string]interface{}{
				"b": 1,
				"c": map[string]interface{}{"d": 2},
			},
		}
		assert.Equal(t, models.MetadataRow{"p.a.b": 1, "p.a.c.d": 2}, Flatten("p", obj))
	})

	t.Run("Empty object yields an empty mapping", func(t *testing.T) {
		assert.Empty(t, Flatten("p", map[string]interface{}{}))
		assert.Empty(t, Flatten("", nil))
	})

	t.Run("Arrays are opaque leaves", func(t *testing.T) {
		obj := map[string]interface{}{
			"layers": []interface{}{map[string]interface{}{"id": "x"}},
		}
		row := Flatten("viz", obj)
		assert.Len(t, row, 1)
		assert.Equal(t, []interface{}{map[string]interface{}{"id": "x"}}, row["viz.layers"])
	})

	t.Run("No prefix keeps bare keys", func(t *testing.T) {
		assert.Equal(t, models.MetadataRow{"a.b": true}, Flatten("", map[string]interface{}{
			"a": map[string]interface{}{"b": true},
		}))
	})
}

func TestMerge(t *testing.T) {
	dst := Merge(nil, models.MetadataRow{"a": 1})
	Merge(dst, models.MetadataRow{"a": 2, "b": 3})
	assert.Equal(t, models.MetadataRow{"a": 2, "b": 3}, dst)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		in       interface{}
		expected string
	}{
		{"null", nil, ""},
		{"string", "Rent Burden", "Rent Burden"},
		{"number keeps text", json.Number("1.50"), "1.50"},
		{"bool", true, "true"},
		{"float", 2.5, "2.5"},
		{"int", 3, "3"},
		{"array", []interface{}{"a", json.Number("1")}, `["a",1]`},
		{"object without html escaping", map[string]interface{}{"k": "<b>"}, `{"k":"<b>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatValue(tt.in))
		})
	}
}
