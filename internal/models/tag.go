package models

import "time"

// Tag categorizes questions. A tag may sit under a parent tag via
// SubTagID, forming a simple category hierarchy.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"unique;not null;size:100" json:"name"`
	Slug      string    `gorm:"unique;not null;size:110" json:"slug"`
	IsSub     bool      `gorm:"not null;default:false" json:"is_sub"`
	SubTagID  *uint     `json:"sub_tag_id,omitempty"`
	SubTag    *Tag      `gorm:"foreignKey:SubTagID" json:"sub_tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
