package models

import "time"

// CartSnapshot is the remote copy of a session's cart. Payload holds the serialized
// item list exactly as the cache tier stores it.
type CartSnapshot struct {
	SessionID  string    `gorm:"column:session_id;primaryKey"`
	Payload    string    `gorm:"column:payload;type:jsonb;not null"`
	ItemCount  int       `gorm:"column:item_count;not null;default:0"`
	TotalCents int64     `gorm:"column:total_cents;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string { return "cart_snapshots" }
