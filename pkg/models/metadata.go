package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Metadata holds arbitrary decoded JSON, e.g. probed stream info.
type Metadata map[string]interface{}

// Value implements driver.Valuer for database storage.
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval.
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Int reads an integer field, tolerating JSON's float64 decoding.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// String reads a string field.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}
