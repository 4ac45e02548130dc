package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/cartograb/internal/models"
)

// Flatten converts a nested object into a single-level row keyed by
// "."-joined paths under prefix. Nested objects are expanded; arrays and
// scalars are kept as leaves. An empty nested object contributes no key.
func Flatten(prefix string, obj map[string]interface{}) models.MetadataRow {
	row := models.MetadataRow{}
	flattenInto(row, prefix, obj)
	return row
}

func flattenInto(row models.MetadataRow, prefix string, obj map[string]interface{}) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(row, key, nested)
			continue
		}
		row[key] = v
	}
}

// Merge copies src into dst, later keys win
func Merge(dst, src models.MetadataRow) models.MetadataRow {
	if dst == nil {
		dst = models.MetadataRow{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// FormatValue renders a leaf value as a CSV cell. JSON null is an empty
// cell; arrays and objects are written as compact JSON.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
