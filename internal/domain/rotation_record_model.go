package domain

import "time"

// RotationRecord is an audit row written whenever the active proxy changes
// while connected.
type RotationRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	RequestID   string    `gorm:"size:36;not null;uniqueIndex"`
	Reason      string    `gorm:"size:16;not null;index"`
	FromProxyID string    `gorm:"size:32;default:''"`
	ProxyID     string    `gorm:"size:32;not null;index"`
	Address     string    `gorm:"size:64;not null"`
	Protocol    string    `gorm:"size:8;not null"`
	Country     string    `gorm:"size:56;not null"`
	City        string    `gorm:"size:56;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

func (RotationRecord) TableName() string {
	return "rotation_records"
}
