package model

// LinkClick is one persisted click. Rows are append-only; duplicate
// deliveries of the same event produce duplicate rows.
type LinkClick struct {
	BaseModel
	LinkID      string   `gorm:"index;size:32;not null" json:"linkId"`
	AccountID   string   `gorm:"index;size:64;not null" json:"accountId"`
	Country     string   `gorm:"size:16;not null" json:"country"`
	Destination string   `gorm:"size:2048;not null" json:"destination"`
	ClickedTime int64    `gorm:"index;not null" json:"clickedTime"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}
