package models

import "time"

// Setting is a platform-operator key/value row. The payment core reads the
// service fee override from here; defaults come from config.
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
