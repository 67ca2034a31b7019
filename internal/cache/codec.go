package cache

import (
	"encoding/json"
	"fmt"

	"idschooldata/pkg/contracts/domain"
)

// Encode serializes a table for storage
func Encode(table *domain.EnrollmentTable) ([]byte, error) {
	if table == nil {
		return nil, fmt.Errorf("nil table")
	}
	data, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode
func Decode(data []byte) (*domain.EnrollmentTable, error) {
	var table domain.EnrollmentTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return &table, nil
}
