package recordstore

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// FieldType is the value type of a declared field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeBoolean   FieldType = "boolean"
	TypeReference FieldType = "reference"
)

// OnDelete selects what happens to referencing records when the referenced
// record is removed.
type OnDelete string

const (
	OnDeleteNone    OnDelete = "none"
	OnDeleteCascade OnDelete = "cascade"
)

// IDStrategy selects how a store assigns identifiers.
type IDStrategy string

const (
	IDSequence IDStrategy = "sequence"
	IDUUID     IDStrategy = "uuid"
)

// Field declares one attribute of an entity.
type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required,omitempty"`
	Unique   bool      `yaml:"unique" json:"unique,omitempty"`

	// Ref names the referenced entity for reference fields.
	Ref      string   `yaml:"ref" json:"ref,omitempty"`
	OnDelete OnDelete `yaml:"on_delete" json:"on_delete,omitempty"`
}

// Schema describes one entity kind.
type Schema struct {
	Name       string     `yaml:"name" json:"name"`
	Table      string     `yaml:"table" json:"table,omitempty"`
	IDStrategy IDStrategy `yaml:"id_strategy" json:"id_strategy,omitempty"`
	Fields     []Field    `yaml:"fields" json:"fields"`
}

// TableName returns the table or key namespace of the entity.
func (s Schema) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return s.Name
}

// Strategy returns the id strategy, defaulting to a sequence.
func (s Schema) Strategy() IDStrategy {
	if s.IDStrategy == "" {
		return IDSequence
	}
	return s.IDStrategy
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the declared field names in declaration order.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

// UniqueFields returns the fields declared unique, in declaration order.
func (s Schema) UniqueFields() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Unique {
			out = append(out, f)
		}
	}
	return out
}

// References returns the reference fields, in declaration order.
func (s Schema) References() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Type == TypeReference {
			out = append(out, f)
		}
	}
	return out
}

// ReferenceTo returns the first reference field pointing at entity.
func (s Schema) ReferenceTo(entity string) (Field, bool) {
	for _, f := range s.References() {
		if f.Ref == entity {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the schema declaration itself.
func (s Schema) Validate() error {
	if s.Name == "" {
		return NewConfigErrorForField("name", s.Name, "schema name is required")
	}
	if !isIdentifier(s.TableName()) {
		return NewConfigErrorForField("table", s.TableName(), "table must be a plain identifier")
	}
	switch s.Strategy() {
	case IDSequence, IDUUID:
	default:
		return NewConfigErrorForField("id_strategy", s.IDStrategy, "unknown id strategy")
	}
	if len(s.Fields) == 0 {
		return NewConfigErrorForField("fields", s.Name, "schema declares no fields")
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if !isIdentifier(f.Name) {
			return NewConfigErrorForField(s.Name+".fields", f.Name, "field name must be a plain identifier")
		}
		if f.Name == IDField {
			return NewConfigErrorForField(s.Name+".fields", f.Name, "id is reserved")
		}
		if seen[f.Name] {
			return NewConfigErrorForField(s.Name+".fields", f.Name, "duplicate field")
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeInteger, TypeDecimal, TypeBoolean:
			if f.Ref != "" {
				return NewConfigErrorForField(s.Name+"."+f.Name, f.Ref, "only reference fields may name a target")
			}
		case TypeReference:
			if f.Ref == "" {
				return NewConfigErrorForField(s.Name+"."+f.Name, f.Ref, "reference field needs a target entity")
			}
		default:
			return NewConfigErrorForField(s.Name+"."+f.Name, f.Type, "unknown field type")
		}

		switch f.OnDelete {
		case "", OnDeleteNone, OnDeleteCascade:
		default:
			return NewConfigErrorForField(s.Name+"."+f.Name, f.OnDelete, "unknown on_delete action")
		}
	}
	return nil
}

// Normalize converts decoded values into their canonical Go representation:
// string, int64, canonical decimal string, bool or reference id string.
// Unknown fields are rejected. Unless partial is set, every required field
// must be present and non-nil.
func (s Schema) Normalize(fields map[string]any, partial bool) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, raw := range fields {
		v, err := s.NormalizeValue(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	if !partial {
		for _, f := range s.Fields {
			if f.Required && out[f.Name] == nil {
				return nil, NewValidationErrorForField(f.Name, nil, "field is required")
			}
		}
	} else {
		for _, f := range s.Fields {
			if v, ok := out[f.Name]; ok && f.Required && v == nil {
				return nil, NewValidationErrorForField(f.Name, nil, "field is required")
			}
		}
	}
	return out, nil
}

// NormalizeValue converts a single value for the named field.
func (s Schema) NormalizeValue(name string, raw any) (any, error) {
	f, ok := s.Field(name)
	if !ok {
		return nil, NewValidationErrorForField(name, raw, fmt.Sprintf("unknown field for %s", s.Name))
	}
	if raw == nil {
		return nil, nil
	}

	var (
		v   any
		err error
	)
	switch f.Type {
	case TypeString:
		v, err = toString(raw)
	case TypeInteger:
		v, err = toInteger(raw)
	case TypeDecimal:
		v, err = toDecimal(raw)
	case TypeBoolean:
		v, err = toBoolean(raw)
	case TypeReference:
		v, err = toReference(raw)
	default:
		err = fmt.Errorf("unknown field type %q", f.Type)
	}
	if err != nil {
		return nil, NewValidationErrorForField(name, raw, err.Error())
	}
	return v, nil
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", raw)
	}
}

func toInteger(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		return strconv.ParseInt(v.String(), 10, 64)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		if v < -(1<<63) || v >= 1<<63 {
			return 0, fmt.Errorf("integer %v out of range", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
}

// Decimal columns are DECIMAL(38,10) on MySQL; the other backends accept at
// least that much.
const (
	decimalScale         = 10
	decimalIntegerDigits = 28
)

var (
	decimalLiteral = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE]([+-]?[0-9]{1,3}))?$`)
	decimalUnit    = new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalScale), nil))
	decimalLimit   = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalIntegerDigits), nil)
)

// toDecimal produces the shortest exact decimal rendering so that values read
// back from any backend compare equal to what was written. Values needing more
// than decimalScale fractional digits are rejected rather than rounded.
func toDecimal(raw any) (string, error) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case []byte:
		text = string(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		text = strconv.FormatInt(v, 10)
	case int:
		text = strconv.Itoa(v)
	default:
		return "", fmt.Errorf("expected a decimal, got %T", raw)
	}

	if !decimalLiteral.MatchString(text) {
		return "", fmt.Errorf("expected a decimal, got %q", text)
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return "", fmt.Errorf("expected a decimal, got %q", text)
	}
	if !new(big.Rat).Mul(r, decimalUnit).IsInt() {
		return "", fmt.Errorf("decimal %q has more than %d fractional digits", text, decimalScale)
	}
	if whole := new(big.Int).Quo(r.Num(), r.Denom()); whole.CmpAbs(decimalLimit) >= 0 {
		return "", fmt.Errorf("decimal %q has more than %d integer digits", text, decimalIntegerDigits)
	}
	if r.IsInt() {
		return r.Num().String(), nil
	}
	out := r.FloatString(decimalScale)
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, "."), nil
}

// toBoolean accepts true and false, their strconv spellings, and the integers
// 0 and 1 that SQL backends store booleans as.
func toBoolean(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return bitToBool(v)
	case int:
		return bitToBool(int64(v))
	case string:
		return strconv.ParseBool(v)
	case []byte:
		return strconv.ParseBool(string(v))
	case json.Number:
		switch v.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
		return false, fmt.Errorf("expected a boolean, got %s", v)
	default:
		return false, fmt.Errorf("expected a boolean, got %T", raw)
	}
}

func bitToBool(v int64) (bool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("expected a boolean, got %d", v)
}

func toReference(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("reference id must not be empty")
		}
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return formatID(raw)
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
