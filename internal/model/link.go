package model

// Link is the authoritative record of a short link. Destinations maps a
// country code (or the reserved "default" key) to a destination URL and is
// mutated only through update operations that bump UpdatedAt and invalidate
// the cached snapshot.
type Link struct {
	BaseModel
	LinkID       string            `gorm:"uniqueIndex;size:32;not null" json:"linkId"`
	AccountID    string            `gorm:"index;size:64;not null" json:"accountId"`
	Name         string            `gorm:"size:255" json:"name"`
	Destinations map[string]string `gorm:"serializer:json;type:json;not null" json:"destinations"`
}
