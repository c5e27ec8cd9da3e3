// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the outcome of a previously processed identify request,
// keyed by the client-supplied Idempotency-Key. Because identity resolution
// is idempotent by construction, the record only needs to remember which
// cluster the request resolved to; a replay re-renders that cluster's current
// consolidated view without re-entering the mutation path.
type Idempotency struct {
	ID               string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key              string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_key"`
	PrimaryContactID int64     `gorm:"type:INTEGER NOT NULL"`
	Status           int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt        time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt        time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
