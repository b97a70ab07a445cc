package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ItemState is the availability of a single lendable item.
type ItemState string

// Item states. HELD and IN_CUSTODY are projections of an open reservation
// or an open rental; WITHDRAWN is an administrative override.
const (
	ItemAvailable ItemState = "AVAILABLE"
	ItemHeld      ItemState = "HELD"
	ItemInCustody ItemState = "IN_CUSTODY"
	ItemWithdrawn ItemState = "WITHDRAWN"
)

// Item is one physical, individually tracked item in the lending pool.
type Item struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description,omitempty" db:"description"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	CategoryID   *int64    `json:"category_id,omitempty" db:"category_id"`
	Metadata     Metadata  `json:"metadata" db:"metadata"`
	ImageMime    string    `json:"image_mime,omitempty" db:"image_mime"`
	State        ItemState `json:"state" db:"state"`
	Active       bool      `json:"active" db:"active"`
	Version      int64     `json:"-" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ValidItemState reports whether s names a known item state.
func ValidItemState(s string) bool {
	switch ItemState(s) {
	case ItemAvailable, ItemHeld, ItemInCustody, ItemWithdrawn:
		return true
	}
	return false
}

// Metadata holds free-form item attributes such as colour, size or model.
// It is stored as a JSON object.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("encoding item metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scanning item metadata: unsupported type %T", src)
	}

	out := Metadata{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decoding item metadata: %w", err)
	}
	*m = out
	return nil
}
