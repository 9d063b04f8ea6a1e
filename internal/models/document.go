package models

import (
	"encoding/json"
	"maps"

	"go.mongodb.org/mongo-driver/bson"
)

// Documents in this API carry arbitrary client fields next to the ones the
// server understands. The unknown ones live in an Extra map that is inlined
// by the bson codec and flattened by the helpers below for JSON.

// flatten merges known over extra into a single JSON object.
func flatten(known map[string]any, extra bson.M) ([]byte, error) {
	out := make(map[string]any, len(known)+len(extra))
	maps.Copy(out, extra)
	maps.Copy(out, known)
	return json.Marshal(out)
}

// extract decodes data into a map and drops the known keys, returning what is
// left as the extra fields (nil when nothing remains).
func extract(data []byte, known ...string) (bson.M, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return bson.M(all), nil
}
