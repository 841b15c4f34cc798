package core

import "time"

// now returns the current time in UTC. Tests may override it.
var now = func() time.Time {
	return time.Now().UTC()
}

// TimeInfo tracks the lifecycle timestamps of a group or entry.
// All times are UTC.
type TimeInfo struct {
	CreationTime         time.Time `json:"creationTime"`
	LastModificationTime time.Time `json:"lastModificationTime"`
	LastAccessTime       time.Time `json:"lastAccessTime"`
	LocationChanged      time.Time `json:"locationChanged"`
	ExpiryTime           time.Time `json:"expiryTime"`
	Expires              bool      `json:"expires"`
}

// NewTimeInfo returns a TimeInfo with all lifecycle times set to now.
func NewTimeInfo() TimeInfo {
	t := now()
	return TimeInfo{
		CreationTime:         t,
		LastModificationTime: t,
		LastAccessTime:       t,
		LocationChanged:      t,
	}
}

// Equals compares two TimeInfo values field by field.
func (t TimeInfo) Equals(other TimeInfo) bool {
	return t.CreationTime.Equal(other.CreationTime) &&
		t.LastModificationTime.Equal(other.LastModificationTime) &&
		t.LastAccessTime.Equal(other.LastAccessTime) &&
		t.LocationChanged.Equal(other.LocationChanged) &&
		t.ExpiryTime.Equal(other.ExpiryTime) &&
		t.Expires == other.Expires
}
