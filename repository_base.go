package recordstore

// RepositoryBase provides common functionality for all repository implementations.
type RepositoryBase struct {
	schema Schema
}

// NewRepositoryBase creates a new base repository.
func NewRepositoryBase(schema Schema) *RepositoryBase {
	return &RepositoryBase{schema: schema}
}

// Schema returns the schema of the entity.
func (r *RepositoryBase) Schema() Schema {
	return r.schema
}

// EntityName returns the entity name.
func (r *RepositoryBase) EntityName() string {
	return r.schema.Name
}

// TableName returns the table name.
func (r *RepositoryBase) TableName() string {
	return r.schema.TableName()
}

// ValidateID validates an entity ID.
func (r *RepositoryBase) ValidateID(id string) error {
	if id == "" {
		return NewValidationErrorForField(IDField, id, "entity ID cannot be empty")
	}
	return nil
}

// Normalize converts the record's fields to canonical values. Null fields
// are dropped; stores never hold them.
func (r *RepositoryBase) Normalize(rec Record) (Record, error) {
	fields, err := r.schema.Normalize(rec.Fields, false)
	if err != nil {
		return Record{}, err
	}
	for name, v := range fields {
		if v == nil {
			delete(fields, name)
		}
	}
	return Record{ID: rec.ID, Fields: fields}, nil
}

// NormalizeConditions validates and converts filter conditions.
func (r *RepositoryBase) NormalizeConditions(conditions []Condition) ([]Condition, error) {
	return r.schema.NormalizeConditions(conditions)
}

// Error handling helpers

// HandleGetError wraps read operation errors with context.
func (r *RepositoryBase) HandleGetError(err error, operation string) error {
	return WrapFault(err, r.schema.Name, operation)
}

// HandleUpdateError wraps write operation errors with context.
func (r *RepositoryBase) HandleUpdateError(err error, operation string) error {
	return WrapFault(err, r.schema.Name, operation)
}

// NotFound builds the not found error for an id of this entity.
func (r *RepositoryBase) NotFound(id string) error {
	return NewNotFoundError(r.schema.Name, id)
}
