package event

// Operation represents what the index must do with a record.
type Operation string

// Operation values.
const (
	OperationUpsert Operation = "upsert"
	OperationDelete Operation = "delete"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsValid reports whether the operation is one of the known values.
func (o Operation) IsValid() bool {
	return o == OperationUpsert || o == OperationDelete
}
