package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"taskbin/internal/auth"
	"taskbin/internal/backend/googletasks"
	"taskbin/internal/config"
	"taskbin/internal/exitcode"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	oauthStartPort = 8085

	// Max port attempts
	oauthMaxPortAttempts = 5

	// mockTokenTTL is the lifetime of tokens minted by login --mock.
	mockTokenTTL = 30 * 24 * time.Hour
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	mock   bool
	google bool
	email  string
	name   string
}

// SetMock selects the offline mock login (for testing).
func (c *LoginCmd) SetMock(email, name string) {
	c.mock, c.email, c.name = true, email, name
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authenticate" }
func (c *LoginCmd) Usage() string {
	return "taskbin login [common flags] [--mock --email <email> [--name <name>] | --google]"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.mock, "mock", false, "")
	fs.BoolVar(&c.google, "google", false, "")
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.name, "name", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	switch {
	case c.mock && c.google:
		return usageError(errOut, "cannot use both --mock and --google")
	case c.mock:
		return c.loginMock(cfg, out, errOut)
	case c.google:
		return c.loginGoogle(ctx, cfg, sess, out, errOut)
	}

	// Check if already logged in (credential exists and decodes)
	if cfg.HasCredential() {
		if d, err := auth.NewDecoder(cfg.Settings.JWKSURL); err == nil {
			_, err := auth.Load(cfg, d)
			d.Close()
			if err == nil {
				if !cfg.Quiet {
					fmt.Fprintln(out, "already logged in")
				}
				return exitcode.Success
			}
		}
	}

	oa := cfg.Settings.OAuth
	if oa.AuthURL == "" || oa.TokenURL == "" || oa.ClientID == "" {
		fmt.Fprintf(errOut, "error: login provider not configured in %s\n\n", cfg.SettingsPath())
		fmt.Fprintln(errOut, "Set the hosted login endpoints, for example:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "  oauth:")
		fmt.Fprintln(errOut, "    auth_url: https://<domain>/oauth2/authorize")
		fmt.Fprintln(errOut, "    token_url: https://<domain>/oauth2/token")
		fmt.Fprintln(errOut, "    client_id: <app client id>")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "or the TASKBIN_OAUTH_* environment variables.")
		fmt.Fprintln(errOut, "For offline use: taskbin login --mock --email <email>")
		return exitcode.AuthError
	}

	oauthConfig := &oauth2.Config{
		ClientID:     oa.ClientID,
		ClientSecret: oa.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: oa.AuthURL, TokenURL: oa.TokenURL},
		Scopes:       oa.Scopes,
	}

	token, err := loopbackLogin(ctx, oauthConfig, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		fmt.Fprintln(errOut, "error: provider did not return an id_token (is the openid scope enabled?)")
		return exitcode.AuthError
	}
	return saveIdentity(cfg, idToken, out, errOut)
}

// loginMock mints a token the mock backend accepts.
func (c *LoginCmd) loginMock(cfg *config.Config, out, errOut io.Writer) int {
	email := strings.TrimSpace(c.email)
	if email == "" {
		return usageError(errOut, "--email required with --mock")
	}
	token, err := auth.MintMock(cfg.Settings.MockSecret(), email, strings.TrimSpace(c.name), mockTokenTTL)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	return saveIdentity(cfg, token, out, errOut)
}

// loginGoogle authorizes read access to Google Tasks for import.
func (c *LoginCmd) loginGoogle(ctx context.Context, cfg *config.Config, sess *Session, out, errOut io.Writer) int {
	if !cfg.HasGoogleClient() {
		fmt.Fprintf(errOut, "error: %s not found in %s\n\n", config.GoogleClientFile, cfg.Dir)
		fmt.Fprintln(errOut, "To import from Google Tasks, you need OAuth credentials:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
		fmt.Fprintln(errOut, "2. Create a project (or select an existing one)")
		fmt.Fprintln(errOut, "3. Enable the Google Tasks API:")
		fmt.Fprintln(errOut, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
		fmt.Fprintln(errOut, "4. Create OAuth 2.0 credentials:")
		fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
		fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
		fmt.Fprintln(errOut, "   - Download the JSON file")
		fmt.Fprintln(errOut, "5. Save it as:")
		fmt.Fprintf(errOut, "   %s\n", cfg.GoogleClientPath())
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "Then run 'taskbin login --google' again.")
		return exitcode.AuthError
	}

	if cfg.HasGoogleToken() && isGoogleTokenValid(ctx, cfg) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	oauthConfig, err := googletasks.OAuthConfig(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	token, err := loopbackLogin(ctx, oauthConfig, errOut, oauth2.AccessTypeOffline)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	if err := saveToken(cfg.GoogleTokenPath(), token); err != nil {
		fmt.Fprintf(errOut, "error: failed to save token: %v\n", err)
		return exitcode.AuthError
	}
	sess.logger().WithField("path", cfg.GoogleTokenPath()).Debug("google token saved")
	return ok(cfg, out)
}

// saveIdentity checks that token decodes to an identity and stores it.
func saveIdentity(cfg *config.Config, token string, out, errOut io.Writer) int {
	d, err := auth.NewDecoder(cfg.Settings.JWKSURL)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	defer d.Close()
	if _, err := d.Decode(token); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	if err := cfg.SaveCredential(token); err != nil {
		fmt.Fprintf(errOut, "error: failed to save credential: %v\n", err)
		return exitcode.AuthError
	}
	return ok(cfg, out)
}

// loopbackLogin runs the authorization-code flow with PKCE against a local
// callback server and returns the exchanged token.
func loopbackLogin(ctx context.Context, oauthConfig *oauth2.Config, errOut io.Writer, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	port, listener, err := findAvailablePort()
	if err != nil {
		return nil, errors.New("could not bind to local port for OAuth callback")
	}
	defer listener.Close()

	oauthConfig.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	authURL := oauthConfig.AuthCodeURL(state, append(opts, oauth2.S256ChallengeOption(verifier))...)

	// Print URL to stderr
	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			select {
			case errCh <- errors.New("no code in callback"):
			default:
			}
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(oauthCallbackTimeout):
		return nil, errors.New("oauth callback timed out")
	case <-ctx.Done():
		return nil, errors.New("cancelled")
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()
	token, err := oauthConfig.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return token, nil
}

// findAvailablePort tries to find an available port starting from oauthStartPort.
func findAvailablePort() (int, net.Listener, error) {
	for i := 0; i < oauthMaxPortAttempts; i++ {
		port := oauthStartPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return port, listener, nil
		}
	}
	return 0, nil, errors.New("no available port found")
}

// isGoogleTokenValid checks that the stored Google token has a refresh
// token and can still produce an access token.
func isGoogleTokenValid(ctx context.Context, cfg *config.Config) bool {
	data, err := os.ReadFile(cfg.GoogleTokenPath())
	if err != nil {
		return false
	}
	var token oauth2.Token
	if err := sonic.ConfigStd.Unmarshal(data, &token); err != nil {
		return false
	}
	if token.RefreshToken == "" {
		return false
	}
	oauthConfig, err := googletasks.OAuthConfig(cfg)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = oauthConfig.TokenSource(ctx, &token).Token()
	return err == nil
}

// saveToken saves an OAuth token to a file with mode 0600.
func saveToken(path string, token *oauth2.Token) error {
	data, err := sonic.ConfigStd.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
