package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    *User
		wantErr bool
	}{
		{"local user", NewLocalUser("alice", "$2a$04$hash"), false},
		{"federated user", NewFederatedUser("google-sub-1", "Alice", "a@example.com"), false},
		{"linked user", &User{
			Local:     &LocalIdentity{Username: "bob", PasswordHash: "$2a$04$hash"},
			Federated: &FederatedIdentity{Provider: ProviderGoogle, Subject: "sub"},
		}, false},
		{"no identity", &User{Name: "ghost"}, true},
		{"local without hash", NewLocalUser("alice", ""), true},
		{"local blank username", NewLocalUser("   ", "$2a$04$hash"), true},
		{"federated without subject", NewFederatedUser("", "x", "x@example.com"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoIdentity) {
				t.Errorf("Validate() error = %v, want ErrNoIdentity", err)
			}
		})
	}
}

func TestUserMarshalJSON_HidesPasswordHash(t *testing.T) {
	u := NewLocalUser("alice", "$2a$04$supersecrethash")
	u.ID = "u1"

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	s := string(data)
	if strings.Contains(s, "supersecrethash") {
		t.Errorf("JSON leaked the password hash: %s", s)
	}
	if !strings.Contains(s, `"username":"alice"`) {
		t.Errorf("JSON missing username: %s", s)
	}
	if strings.Contains(s, "googleId") {
		t.Errorf("JSON should omit empty googleId: %s", s)
	}
}

func TestRecordPatchApply(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &Record{Company: "Acme", JobTitle: "Engineer", ClickCount: 7}

	title := "Senior Engineer"
	offer := true
	RecordPatch{JobTitle: &title, AppliedDate: &date, ReceivedOffer: &offer}.Apply(r)

	if r.JobTitle != "Senior Engineer" {
		t.Errorf("JobTitle = %q, want %q", r.JobTitle, "Senior Engineer")
	}
	if r.Company != "Acme" {
		t.Errorf("Company changed to %q, nil patch fields must be ignored", r.Company)
	}
	if !r.AppliedDate.Equal(date) {
		t.Errorf("AppliedDate = %v, want %v", r.AppliedDate, date)
	}
	if r.ReceivedOffer == nil || !*r.ReceivedOffer {
		t.Errorf("ReceivedOffer = %v, want true", r.ReceivedOffer)
	}
	if r.ReceivedInterview != nil {
		t.Errorf("ReceivedInterview = %v, want nil", *r.ReceivedInterview)
	}
	if r.ClickCount != 7 {
		t.Errorf("ClickCount = %d, patch must not touch it", r.ClickCount)
	}

	// the record must not alias the patch's pointer
	offer = false
	if !*r.ReceivedOffer {
		t.Error("ReceivedOffer aliases the patch value")
	}
}
