package models

import "time"

// SweeperLease marks which process currently owns a recurring job.
type SweeperLease struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Holder    string    `gorm:"not null;size:64" json:"holder"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

func (SweeperLease) TableName() string {
	return "sweeper_leases"
}
