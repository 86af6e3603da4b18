package domain

import (
	"strings"
	"time"
)

// DefaultGuestPrefix marks owner ids created for anonymous sessions.
const DefaultGuestPrefix = "guest:"

// Record is a locally stored entity row together with its sync bookkeeping.
type Record struct {
	ID             string         `json:"id"`
	CreatedByOwner string         `json:"createdByOwner"`
	Synced         bool           `json:"synced"`
	SyncedAt       *time.Time     `json:"syncedAt,omitempty"` // nil = never pushed
	IsDeleted      bool           `json:"isDeleted"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Data           map[string]any `json:"data"`
}

// NeverPushed reports whether the remote side has never seen this record.
func (r *Record) NeverPushed() bool {
	return r.SyncedAt == nil
}

// Clone returns a copy that does not share the Data map or SyncedAt pointer.
func (r *Record) Clone() *Record {
	c := *r
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		c.SyncedAt = &t
	}
	if r.Data != nil {
		c.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// IsGuestOwner reports whether owner belongs to an anonymous identity.
func IsGuestOwner(owner, guestPrefix string) bool {
	if owner == "" {
		return true
	}
	if guestPrefix == "" {
		guestPrefix = DefaultGuestPrefix
	}
	return strings.HasPrefix(owner, guestPrefix)
}
