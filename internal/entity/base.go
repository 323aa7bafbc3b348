package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base is embedded by rows keyed by a uuid.
type Base struct {
	ID        string `gorm:"primarykey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// SnowFlakeBase is embedded by append-only rows whose ids must be ordered by
// creation time.
type SnowFlakeBase struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Map is stored as a json column.
type Map map[string]any

func (m *Map) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Map", value)
	}

	return json.Unmarshal(raw, m)
}

// GormDataType makes the column a json one on every dialect.
func (Map) GormDataType() string {
	return "json"
}

func (m Map) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}
