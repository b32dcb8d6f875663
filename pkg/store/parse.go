package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Parse decodes a JSON array of movie records.
// A top-level value that isn't an array is an ErrMalformedSource.
// Entries that aren't JSON objects, records that have neither ID nor title,
// or whose key was already seen are skipped and logged.
// Fields with an unexpected type are ignored, so they fall back to their defaults.
func Parse(data []byte, logger *zap.Logger) ([]Record, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value isn't an array", ErrMalformedSource)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSource, err)
	}

	records := make([]Record, 0, len(raws))
	seen := make(map[string]int, len(raws))
	for i, raw := range raws {
		record, ignored, err := decodeRecord(raw)
		if err != nil {
			logger.Warn("Skipping malformed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if len(ignored) > 0 {
			logger.Warn("Ignoring malformed record fields", zap.Int("index", i), zap.Strings("fields", ignored))
		}
		key := record.Key()
		if key == "" {
			logger.Warn("Skipping record without ID and title", zap.Int("index", i))
			continue
		}
		if first, ok := seen[key]; ok {
			logger.Warn("Skipping record with duplicate key", zap.String("key", key), zap.Int("index", i), zap.Int("firstIndex", first))
			continue
		}
		seen[key] = i
		records = append(records, record)
	}
	return records, nil
}

// decodeRecord decodes a single JSON object into a Record.
// If that fails, the fields that can't be decoded on their own are dropped and returned.
func decodeRecord(raw json.RawMessage) (Record, []string, error) {
	var record Record
	err := json.Unmarshal(raw, &record)
	if err == nil {
		return record, nil, nil
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return Record{}, nil, err
	}
	var ignored []string
	for name, value := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{name: value})
		if err != nil || json.Unmarshal(single, &Record{}) != nil {
			ignored = append(ignored, name)
			delete(fields, name)
		}
	}
	slices.Sort(ignored)

	cleaned, err := json.Marshal(fields)
	if err != nil {
		return Record{}, nil, err
	}
	record = Record{}
	if err := json.Unmarshal(cleaned, &record); err != nil {
		return Record{}, nil, err
	}
	return record, ignored, nil
}
