package driver

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/oauth2"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/oidc"
)

// HumanOIDCOptions builds the driver credential options for the
// human-verification MONGODB-OIDC flow: browser + loopback callback when
// a browser is available, otherwise the device-code flow. The driver
// calls back into one of these exactly once per principal, supplying the
// issuer/client id/scopes the identity provider actually asked for.
func HumanOIDCOptions(browserAvailable bool, openBrowser oidc.BrowserOpener, onDevicePrompt func(oidc.DeviceFlowPrompt)) *options.ClientOptions {
	callback := deviceCallback(onDevicePrompt)
	if browserAvailable && openBrowser != nil {
		callback = authCodeCallback(openBrowser)
	}

	return options.Client().SetAuth(options.Credential{
		AuthMechanism:     "MONGODB-OIDC",
		OIDCHumanCallback: callback,
	})
}

func oauth2ConfigFrom(args *options.OIDCArgs) *oauth2.Config {
	return &oauth2.Config{
		ClientID: args.IDPInfo.ClientID,
		Scopes:   args.IDPInfo.RequestScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:       args.IDPInfo.Issuer + "/v1/authorize",
			TokenURL:      args.IDPInfo.Issuer + "/v1/token",
			DeviceAuthURL: args.IDPInfo.Issuer + "/v1/device/authorize",
		},
	}
}

func authCodeCallback(openBrowser oidc.BrowserOpener) options.OIDCCallback {
	return func(ctx context.Context, args *options.OIDCArgs) (*options.OIDCCredential, error) {
		token, err := oidc.RunAuthCodeFlow(ctx, oauth2ConfigFrom(args), openBrowser)
		if err != nil {
			return nil, fmt.Errorf("oidc auth-code flow: %w", err)
		}
		return &options.OIDCCredential{AccessToken: token.AccessToken, ExpiresAt: &token.Expiry}, nil
	}
}

func deviceCallback(onPrompt func(oidc.DeviceFlowPrompt)) options.OIDCCallback {
	return func(ctx context.Context, args *options.OIDCArgs) (*options.OIDCCredential, error) {
		token, err := oidc.RunDeviceFlow(ctx, oauth2ConfigFrom(args), onPrompt)
		if err != nil {
			return nil, fmt.Errorf("oidc device flow: %w", err)
		}
		return &options.OIDCCredential{AccessToken: token.AccessToken, ExpiresAt: &token.Expiry}, nil
	}
}
