package oidc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// BrowserOpener opens url in the user's default browser. Supplied by the
// caller so this package stays testable without spawning a real browser.
type BrowserOpener func(url string) error

// RunAuthCodeFlow starts a loopback HTTP listener, builds the
// authorization URL with that listener's address as the redirect URI,
// opens it via openBrowser, and waits for the provider to redirect back
// with the authorization code. It is used when a browser is available
// (stdio transport with a configured browser, or HTTP bound to loopback).
func RunAuthCodeFlow(ctx context.Context, cfg *oauth2.Config, openBrowser BrowserOpener) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("open loopback listener: %w", err)
	}
	defer listener.Close()

	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	resultCh := make(chan callbackResult, 1)
	server := &http.Server{Handler: callbackHandler(state, resultCh)}
	go server.Serve(listener)
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if err := openBrowser(authURL); err != nil {
		return nil, fmt.Errorf("open browser for authorization: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		if result.err != nil {
			return nil, result.err
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)

		token, err := cfg.Exchange(ctx, result.code)
		if err != nil {
			return nil, fmt.Errorf("exchange authorization code: %w", err)
		}
		return token, nil
	}
}

type callbackResult struct {
	code string
	err  error
}

func callbackHandler(expectedState string, resultCh chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if errParam := query.Get("error"); errParam != "" {
			resultCh <- callbackResult{err: fmt.Errorf("authorization error: %s", errParam)}
			http.Error(w, "authorization failed, you may close this tab", http.StatusBadRequest)
			return
		}
		if query.Get("state") != expectedState {
			resultCh <- callbackResult{err: fmt.Errorf("authorization callback state mismatch")}
			http.Error(w, "state mismatch, you may close this tab", http.StatusBadRequest)
			return
		}
		code := query.Get("code")
		if code == "" {
			resultCh <- callbackResult{err: fmt.Errorf("authorization callback missing code")}
			http.Error(w, "missing authorization code, you may close this tab", http.StatusBadRequest)
			return
		}
		resultCh <- callbackResult{code: code}
		fmt.Fprint(w, "Authentication complete, you may close this tab.")
	})
	return mux
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
