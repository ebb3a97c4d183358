package model

import "time"

// Application status values accepted by PATCH /records/{id}/status.
// Anything other than StatusApplied clears the caller's application.
const (
	StatusApplied    = "Applied"
	StatusNotApplied = "Not Applied"
)

// Record is one tracked job posting / application.
//
// OPTIONAL BOOLEANS:
// ReceivedInterview and ReceivedOffer are *bool because "unknown" is a real
// state distinct from "no". A nil pointer serialises as JSON null.
//
// IsApplied is never stored on the row. It is computed per request from the
// record_applications table for the authenticated caller, which is why it has
// no db tag.
type Record struct {
	ID                string    `json:"id"                db:"id"`
	Company           string    `json:"company"           db:"company"`
	EmploymentType    string    `json:"employmentType"    db:"employment_type"`
	JobTitle          string    `json:"jobTitle"          db:"job_title"`
	AppliedDate       time.Time `json:"appliedDate"       db:"applied_date"`
	WebsiteLink       string    `json:"websiteLink"       db:"website_link"`
	Comment           string    `json:"comment,omitempty" db:"comment"`
	ClickCount        int       `json:"clickCount"        db:"click_count"`
	OwnerUserID       string    `json:"ownerUserId"       db:"owner_user_id"`
	ReceivedInterview *bool     `json:"receivedInterview" db:"received_interview"`
	ReceivedOffer     *bool     `json:"receivedOffer"     db:"received_offer"`
	IsApplied         bool      `json:"isApplied"`
	CreatedAt         time.Time `json:"createdAt"         db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt"         db:"updated_at"`
}

// RecordPatch holds the fields of a partial update. A nil field is left untouched.
type RecordPatch struct {
	Company           *string
	EmploymentType    *string
	JobTitle          *string
	AppliedDate       *time.Time
	WebsiteLink       *string
	Comment           *string
	ReceivedInterview *bool
	ReceivedOffer     *bool
}

// Apply merges the non-nil fields of p into r.
func (p RecordPatch) Apply(r *Record) {
	if p.Company != nil {
		r.Company = *p.Company
	}
	if p.EmploymentType != nil {
		r.EmploymentType = *p.EmploymentType
	}
	if p.JobTitle != nil {
		r.JobTitle = *p.JobTitle
	}
	if p.AppliedDate != nil {
		r.AppliedDate = *p.AppliedDate
	}
	if p.WebsiteLink != nil {
		r.WebsiteLink = *p.WebsiteLink
	}
	if p.Comment != nil {
		r.Comment = *p.Comment
	}
	if p.ReceivedInterview != nil {
		v := *p.ReceivedInterview
		r.ReceivedInterview = &v
	}
	if p.ReceivedOffer != nil {
		v := *p.ReceivedOffer
		r.ReceivedOffer = &v
	}
}

// ApplicationStatus is the response of the per-record status endpoints.
type ApplicationStatus struct {
	RecordID string `json:"recordId"`
	Status   string `json:"status"`
}
