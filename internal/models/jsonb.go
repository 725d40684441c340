package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ProviderDocument is a list of providers stored in a Postgres jsonb column.
type ProviderDocument []Provider

func (d ProviderDocument) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]Provider(d))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *ProviderDocument) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("ProviderDocument: expected []byte, got %T", value)
	}

	if len(b) == 0 {
		*d = nil
		return nil
	}

	var providers []Provider
	if err := json.Unmarshal(b, &providers); err != nil {
		return err
	}
	*d = providers
	return nil
}
