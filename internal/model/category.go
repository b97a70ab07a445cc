package model

import "time"

// Category groups items for browsing. Deleting a category deactivates it;
// it stays referenced by the items that used it.
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CategoryCount is a category together with how many active items use it.
type CategoryCount struct {
	Category
	ActiveItems int `json:"active_items" db:"active_items"`
}
