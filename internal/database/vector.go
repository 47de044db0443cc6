package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector wraps a float32 slice for use as a PostgreSQL VECTOR column value.
// It implements sql.Scanner and driver.Valuer to convert between Go and the
// pgvector text format "[1.0,2.0,3.0]". A nil Vector scans from and stores as
// SQL NULL, which is how documents without an embedding are represented.
type Vector struct {
	floats []float32
}

// NewVector creates a Vector from a float32 slice. The input is copied so
// later mutations of the source slice have no effect.
func NewVector(floats []float32) Vector {
	if floats == nil {
		return Vector{}
	}
	cp := make([]float32, len(floats))
	copy(cp, floats)
	return Vector{floats: cp}
}

// Floats returns a copy of the underlying float32 slice, or nil if the
// vector is null.
func (v Vector) Floats() []float32 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float32, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// Dimension returns the number of elements in the vector.
func (v Vector) Dimension() int {
	return len(v.floats)
}

// IsNull reports whether the vector holds no value.
func (v Vector) IsNull() bool {
	return v.floats == nil
}

// Scan implements sql.Scanner. It parses the pgvector text format
// "[1.0,2.0,3.0]" from either a string or []byte value.
func (v *Vector) Scan(value any) error {
	if value == nil {
		v.floats = nil
		return nil
	}

	var raw string
	switch val := value.(type) {
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		v.floats = []float32{}
		return nil
	}

	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	parts := strings.Split(raw, ",")
	floats := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("parse element %d: %w", i, err)
		}
		floats[i] = float32(f)
	}

	v.floats = floats
	return nil
}

// Value implements driver.Valuer. It serializes the vector to the pgvector
// text format, or NULL when the vector is null.
func (v Vector) Value() (driver.Value, error) {
	if v.floats == nil {
		return nil, nil
	}
	return v.String(), nil
}

// String returns the pgvector literal "[1.0,2.0,3.0]".
func (v Vector) String() string {
	var b strings.Builder
	b.Grow(len(v.floats)*12 + 2)
	b.WriteByte('[')
	for i, f := range v.floats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
