// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ProviderGoogle is the only federated identity provider we accept.
const ProviderGoogle = "google"

// LocalIdentity is a username/password identity.
// PasswordHash is the full bcrypt output; the plaintext is never stored.
type LocalIdentity struct {
	Username     string
	PasswordHash string
}

// FederatedIdentity is an identity asserted by a third-party provider.
// Subject is the provider's stable user id (the "sub" claim of a Google ID token).
type FederatedIdentity struct {
	Provider string
	Subject  string
}

// User represents a registered user account.
//
// TAGGED VARIANT INSTEAD OF CONDITIONALLY-REQUIRED FIELDS:
// A user signs in either with a username/password pair or with a Google
// account. Rather than one struct where "username is required unless googleId
// is set", each way of signing in is its own small struct, and a User carries
// one or both of them:
//
//	Local     != nil → can log in with username + password
//	Federated != nil → can log in with a Google ID token
//
// A nil pointer means "this identity does not exist". Both are set once a
// Google login is linked to an existing local account (matched by email).
type User struct {
	ID        string
	Name      string
	Email     string
	Local     *LocalIdentity
	Federated *FederatedIdentity
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNoIdentity is returned by Validate when a user has no way to sign in.
var ErrNoIdentity = errors.New("user must have a local or federated identity")

// NewLocalUser builds a user that signs in with username and password.
func NewLocalUser(username, passwordHash string) *User {
	return &User{
		Local: &LocalIdentity{Username: username, PasswordHash: passwordHash},
	}
}

// NewFederatedUser builds a user that signs in with Google.
func NewFederatedUser(googleID, name, email string) *User {
	return &User{
		Name:      name,
		Email:     email,
		Federated: &FederatedIdentity{Provider: ProviderGoogle, Subject: googleID},
	}
}

// Validate checks the construction invariant: at least one complete identity.
func (u *User) Validate() error {
	hasLocal := u.Local != nil &&
		strings.TrimSpace(u.Local.Username) != "" &&
		u.Local.PasswordHash != ""
	hasFederated := u.Federated != nil && u.Federated.Subject != ""
	if !hasLocal && !hasFederated {
		return ErrNoIdentity
	}
	return nil
}

// Username returns the local username, or "" for federated-only users.
func (u *User) Username() string {
	if u.Local == nil {
		return ""
	}
	return u.Local.Username
}

// GoogleID returns the Google subject id, or "" if no Google account is linked.
func (u *User) GoogleID() string {
	if u.Federated == nil {
		return ""
	}
	return u.Federated.Subject
}

// userJSON is the public shape of a User. The password hash has no field here,
// so it can never leak into a response.
type userJSON struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	GoogleID  string    `json:"googleId,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON flattens the identity variants into the API shape.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{
		ID:        u.ID,
		Username:  u.Username(),
		GoogleID:  u.GoogleID(),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
}
