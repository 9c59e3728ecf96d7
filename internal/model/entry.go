package model

import "time"

// Entry is one row of the local key-value store. Value holds a whole
// serialized collection.
type Entry struct {
	Key       string `gorm:"column:storage_key;primaryKey"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
