package recordstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// IDField is the reserved name of the identifier in the wire form of a record.
const IDField = "id"

// Record is one stored entity instance: a store-assigned identifier plus the
// values of the schema's declared fields.
type Record struct {
	ID     string
	Fields map[string]any
}

// NewRecord creates a record without an identifier.
func NewRecord(fields map[string]any) Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Record{Fields: fields}
}

// Get returns the value of a field and whether the field is present.
func (r Record) Get(name string) (any, bool) {
	if name == IDField {
		return r.ID, r.ID != ""
	}
	v, ok := r.Fields[name]
	return v, ok
}

// Has reports whether the field is present on the record.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Clone returns a copy whose field map can be modified independently.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: maps.Clone(r.Fields)}
}

// Merge overwrites every field present in patch. The identifier is left alone.
func (r Record) Merge(patch map[string]any) Record {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = make(map[string]any, len(patch))
	}
	maps.Copy(out.Fields, patch)
	return out
}

// MarshalJSON renders the record as a flat object with an "id" member.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	if r.ID != "" {
		out[IDField] = r.ID
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object. Numbers are kept as json.Number so that
// decimals survive until the schema normalizes them.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record must be a JSON object")
	}

	r.ID = ""
	if v, ok := raw[IDField]; ok {
		delete(raw, IDField)
		id, err := formatID(v)
		if err != nil {
			return err
		}
		r.ID = id
	}
	r.Fields = raw
	return nil
}

func formatID(v any) (string, error) {
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case float64:
		if id != float64(int64(id)) {
			return "", fmt.Errorf("id must be an integer or string, got %v", id)
		}
		return strconv.FormatInt(int64(id), 10), nil
	default:
		return "", fmt.Errorf("id must be an integer or string, got %T", v)
	}
}
