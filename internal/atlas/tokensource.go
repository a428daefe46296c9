package atlas

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"
)

// TelemetryTokenSource adapts a clientcredentials.Config to the
// telemetry package's TokenSource interface, so authenticated telemetry
// flushes reuse the same Atlas OAuth2 credentials as the Atlas client
// rather than maintaining a second token cache.
type TelemetryTokenSource struct {
	cfg *clientcredentials.Config
}

func NewTelemetryTokenSource(clientID, clientSecret, tokenURL string) *TelemetryTokenSource {
	return &TelemetryTokenSource{cfg: &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}}
}

func (t *TelemetryTokenSource) Token(ctx context.Context) (string, error) {
	token, err := t.cfg.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
