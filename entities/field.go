package entities

import "time"

type Field struct {
	FieldID   uint    `gorm:"primaryKey" json:"field_id"`
	UserID    string  `json:"user_id" gorm:"index;size:64"`
	FieldName string  `json:"field_name" gorm:"size:255"`
	AreaRai   float64 `json:"area_rai"`
	Province  string  `json:"province"`
	District  string  `json:"district"`
	Crop      string  `json:"crop"` // cocoa|durian|...

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Zone struct {
	ZoneID   uint   `gorm:"primaryKey" json:"zone_id"`
	FieldID  uint   `json:"field_id" gorm:"index"`
	ZoneName string `json:"zone_name" gorm:"size:255"`
	NumTrees int    `json:"num_trees"`

	CreatedAt time.Time `json:"created_at"`
}
