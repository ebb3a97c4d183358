package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// GoogleIdentity is what we keep from a verified Google ID token.
type GoogleIdentity struct {
	Subject string // Google's stable account id, the "sub" claim
	Name    string
	Email   string
}

// GoogleVerifier checks Google-issued ID tokens for one OAuth client.
//
// ID TOKEN VERIFICATION:
// A Google ID token is a JWT signed with one of Google's rotating RSA keys.
// idtoken.Validator fetches and caches the public keys, checks the signature,
// the expiry, the issuer (accounts.google.com) and that "aud" equals our
// client ID. A token minted for somebody else's app is rejected even though
// Google signed it.
type GoogleVerifier struct {
	validator *idtoken.Validator
	clientID  string
}

// NewGoogleVerifier creates a verifier for tokens issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("auth: google client id is required")
	}

	// WithHTTPClient stops idtoken from looking for Application Default
	// Credentials. Fetching Google's public certs needs no credentials.
	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return nil, fmt.Errorf("auth: creating google token validator: %w", err)
	}

	return &GoogleVerifier{validator: v, clientID: clientID}, nil
}

// Verify validates rawToken and returns the identity it asserts.
func (g *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleIdentity, error) {
	payload, err := g.validator.Validate(ctx, rawToken, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying google id token: %w", err)
	}
	if payload.Subject == "" {
		return nil, errors.New("auth: google id token has no subject")
	}

	return &GoogleIdentity{
		Subject: payload.Subject,
		Name:    stringClaim(payload.Claims, "name"),
		Email:   stringClaim(payload.Claims, "email"),
	}, nil
}

// stringClaim reads an optional string claim. Missing or non-string values
// come back as "".
func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Your server redirects the user to Google's authorization endpoint,
//     with your ClientID and the requested scopes.
//  2. The user approves (or denies) the request on Google.
//  3. Google redirects back to your CallbackURL with a short-lived "code".
//  4. Your server exchanges the code for tokens (server-to-server call).
//  5. With the "openid" scope the token response includes an id_token,
//     which goes through the same GoogleVerifier as a client-supplied one.
//
// The browser-side ID token flow (POST /users/auth/google-login) needs only
// the client ID. This provider is only wired when a client secret is set.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// callbackURL must exactly match an "Authorized redirect URI" configured for
// the OAuth client in the Google Cloud console.
// Example: "http://localhost:8080/users/auth/google/callback"
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return newGoogleProviderWithEndpoint(clientID, clientSecret, callbackURL, google.Endpoint)
}

// newGoogleProviderWithEndpoint lets tests point the token exchange at an
// httptest server.
func newGoogleProviderWithEndpoint(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is a random string we generate and store in a cookie before
// redirecting. When Google calls back, we verify the returned state matches
// our cookie. This prevents CSRF attacks where an attacker tricks your
// browser into completing an OAuth flow for their account.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for Google's ID token.
// The returned string is unverified; pass it to GoogleVerifier.Verify.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// id_token is not part of the core OAuth2 token response, so the oauth2
	// package exposes it through Extra.
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.New("auth: google token response has no id_token")
	}

	return rawIDToken, nil
}
