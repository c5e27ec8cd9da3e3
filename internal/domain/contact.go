// Package domain defines the persistence models for contact records and the
// consolidated identity views derived from them. These types are mapped with
// GORM and form the core data layer of the identity backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Link precedence values for Contact.LinkPrecedence.
const (
	PrecedencePrimary   = "primary"
	PrecedenceSecondary = "secondary"
)

// Contact represents one observed (email, phoneNumber) submission. Contacts
// that belong to the same real-world identity form a cluster: exactly one
// primary row plus zero or more secondary rows pointing at it via LinkedID.
//
// Fields:
//   - ID: autoincrement primary key; creation order establishes seniority.
//   - Email / PhoneNumber: optional identifiers; at least one is non-null.
//   - LinkedID: set only on secondary rows, names the cluster primary.
//     Secondaries always point at a primary, never at another secondary.
//   - LinkPrecedence: "primary" or "secondary" (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM; CreatedAt is the
//     sole tie-break for seniority when clusters merge.
//   - DeletedAt: soft deletion marker (retained in schema; the resolver
//     never sets it).
type Contact struct {
	ID             int64          `json:"id"             gorm:"primaryKey;autoIncrement"`
	Email          *string        `json:"email,omitempty"       gorm:"type:varchar(255);index:idx_contacts_email"`
	PhoneNumber    *string        `json:"phoneNumber,omitempty" gorm:"type:varchar(32);index:idx_contacts_phone"`
	LinkedID       *int64         `json:"linkedId,omitempty"    gorm:"index:idx_contacts_linked"`
	LinkPrecedence string         `json:"linkPrecedence" gorm:"type:varchar(16);not null;check:link_precedence IN ('primary','secondary')"`
	CreatedAt      time.Time      `json:"createdAt"      gorm:"index:idx_contacts_created"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// IsPrimary reports whether the contact is the canonical row of its cluster.
func (c *Contact) IsPrimary() bool { return c.LinkPrecedence == PrecedencePrimary }

// EmailValue returns the email or "" when null.
func (c *Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PhoneValue returns the phone number or "" when null.
func (c *Contact) PhoneValue() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return *c.PhoneNumber
}

// ConsolidatedContact is the canonical, deduplicated view of one identity
// cluster as returned by the resolver. Emails and PhoneNumbers carry the
// primary row's value first (when present) followed by every other distinct
// non-null value in first-encounter order; SecondaryContactIDs are sorted
// ascending.
type ConsolidatedContact struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}
