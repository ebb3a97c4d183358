package model

import "time"

// Profile is a user's view of the records they have applied to.
//
// AppliedRecords is derived from record_applications (the single source of
// truth for "who applied to what"), ordered by when the application was made.
// The profile row itself only records that the profile exists.
type Profile struct {
	UserID         string    `json:"userId"`
	AppliedRecords []Record  `json:"appliedRecords"`
	CreatedAt      time.Time `json:"createdAt"`
}
