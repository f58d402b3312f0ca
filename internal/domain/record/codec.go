package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gmz-labs/voicexp/internal/domain/shared"
)

// Encode serializes a record set into the durable format: a UTF-8 JSON array
// of {"memberId", "xp"} objects, in the given order.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("record: encode: %w", err)
	}
	return data, nil
}

// Decode parses the durable format. Anything that is not an array of valid,
// uniquely keyed records is rejected: a corrupt store must never be replaced
// by a partial or guessed record set.
func Decode(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, shared.WrapError("record", "Decode", shared.ErrInvalidFormat,
			"record set must be a JSON array", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, shared.WrapError("record", "Decode", shared.ErrInvalidFormat,
			"malformed record set", err)
	}
	if dec.More() {
		return nil, shared.WrapError("record", "Decode", shared.ErrInvalidFormat,
			"trailing data after record set", nil)
	}

	if err := validateSet(records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// validateSet checks every record and the uniqueness of member IDs.
func validateSet(records []Record) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[r.MemberID]; dup {
			return fmt.Errorf("record %d (%s): %w", i, r.MemberID, shared.ErrDuplicateMember)
		}
		seen[r.MemberID] = struct{}{}
	}
	return nil
}
