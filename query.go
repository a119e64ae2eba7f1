package recordstore

import "fmt"

// Condition is an equality filter on one field.
type Condition struct {
	Field string
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Value: value}
}

// Matches reports whether rec satisfies the condition. Values are expected to
// be normalized through the record's schema.
func (c Condition) Matches(rec Record) bool {
	v, ok := rec.Get(c.Field)
	if !ok {
		return c.Value == nil
	}
	return v == c.Value
}

// NormalizeConditions checks that every condition names a declared field (or
// the id) and converts its value to the field's canonical form.
func (s Schema) NormalizeConditions(conditions []Condition) ([]Condition, error) {
	out := make([]Condition, 0, len(conditions))
	for _, c := range conditions {
		if c.Field == IDField {
			id, err := formatID(c.Value)
			if err != nil {
				return nil, NewValidationErrorForField(IDField, c.Value, err.Error())
			}
			out = append(out, Condition{Field: IDField, Value: id})
			continue
		}
		v, err := s.NormalizeValue(c.Field, c.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Condition{Field: c.Field, Value: v})
	}
	return out, nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%s=%v", c.Field, c.Value)
}
