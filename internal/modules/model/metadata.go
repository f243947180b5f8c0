package model

import (
	"database/sql/driver"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// StorageMetadata is the backend specific key/value map kept with an image row.
type StorageMetadata map[string]string

func (m StorageMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := jsoniter.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *StorageMetadata) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported storage_metadata type %T", src)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	out := map[string]string{}
	if err := jsoniter.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
