// Package oidc implements the two OIDC human-verification flows the
// connection manager needs when the connection string requests
// MONGODB-OIDC: auth-code flow (browser + loopback callback) and device
// flow (verification URL + user code, polled until approved). Neither
// flow is provided by the mongo driver itself; both are built directly
// on golang.org/x/oauth2 primitives.
package oidc

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// DeviceFlowPrompt is what the caller must show the human: a URL to
// visit and a short code to type in.
type DeviceFlowPrompt struct {
	VerificationURI         string
	VerificationURIComplete string
	UserCode                string
}

// RunDeviceFlow starts the OAuth2 device authorization grant and blocks
// until the user approves it (or ctx is cancelled). onPrompt is called
// once the device code is issued, before polling begins, so the caller
// can surface the verification URL/code through the MCP notification
// channel.
func RunDeviceFlow(ctx context.Context, cfg *oauth2.Config, onPrompt func(DeviceFlowPrompt)) (*oauth2.Token, error) {
	deviceAuth, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("start device authorization: %w", err)
	}

	if onPrompt != nil {
		onPrompt(DeviceFlowPrompt{
			VerificationURI:         deviceAuth.VerificationURI,
			VerificationURIComplete: deviceAuth.VerificationURIComplete,
			UserCode:                deviceAuth.UserCode,
		})
	}

	token, err := cfg.DeviceAccessToken(ctx, deviceAuth)
	if err != nil {
		return nil, fmt.Errorf("poll for device access token: %w", err)
	}
	return token, nil
}
