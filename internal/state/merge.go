package state

import (
	"encoding/json"
	"fmt"
)

// extend deep-merges patch into base (which may be nil) and returns the
// resulting object. Nested maps merge key by key; any other value
// replaces what was there. The id is always forced to id.
func extend(id string, base *Object, patch map[string]any) (*Object, error) {
	doc := map[string]any{}
	if base != nil {
		data, err := json.Marshal(base)
		if err != nil {
			return nil, fmt.Errorf("encoding object %s: %w", id, err)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding object %s: %w", id, err)
		}
	}

	mergeMaps(doc, patch)
	doc["_id"] = id
	if _, ok := doc["type"]; !ok {
		doc["type"] = TypeState
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	var out Object
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: patch for %s: %w", ErrInvalidValue, id, err)
	}
	return &out, nil
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}
