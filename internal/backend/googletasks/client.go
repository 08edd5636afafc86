// Package googletasks reads Google Tasks lists so they can be imported into
// a TaskBin board.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskbin/internal/config"
	"taskbin/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// Scope is the read-only OAuth scope import needs.
	Scope = "https://www.googleapis.com/auth/tasks.readonly"
)

// List is a Google task list.
type List struct {
	ID        string
	Title     string
	IsDefault bool
}

// Client reads task lists and tasks from Google Tasks.
type Client struct {
	svc *tasks.Service
}

// OAuthConfig loads the Google OAuth client from the config directory.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.GoogleClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.GoogleClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.GoogleClientFile, err)
	}
	return oauthConfig, nil
}

// New creates a client from the stored Google client and token.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tokenData, err := os.ReadFile(cfg.GoogleTokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s (run: taskbin login --google): %w", config.GoogleTokenFile, err)
	}
	var token oauth2.Token
	if err := sonic.ConfigStd.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.GoogleTokenFile, err)
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	return NewWithHTTPClient(ctx, httpClient)
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListLists returns all task lists in API order.
func (c *Client) ListLists(ctx context.Context) ([]List, error) {
	const op = "list google task lists"
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	defaultList, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(op, err)
	}

	var result []List
	err = c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, l := range resp.Items {
			result = append(result, List{
				ID:        l.Id,
				Title:     l.Title,
				IsDefault: l.Id == defaultList.Id,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(op, err)
	}
	return result, nil
}

// ResolveList finds a list by name (case-insensitive, trimmed). An empty
// name selects the default list.
func (c *Client) ResolveList(ctx context.Context, name string) (List, error) {
	const op = "resolve google task list"
	name = strings.TrimSpace(name)

	lists, err := c.ListLists(ctx)
	if err != nil {
		return List{}, err
	}

	var matches []List
	for _, l := range lists {
		if name == "" && l.IsDefault {
			return l, nil
		}
		if strings.EqualFold(strings.TrimSpace(l.Title), name) {
			matches = append(matches, l)
		}
	}

	switch len(matches) {
	case 0:
		return List{}, service.StatusError(op, http.StatusNotFound, "list not found: "+name)
	case 1:
		return matches[0], nil
	default:
		return List{}, service.InputError(op, "ambiguous list name: "+name)
	}
}

// Tasks returns every task of a list as board task input, following pages.
// Completed tasks are included only when includeCompleted is set.
func (c *Client) Tasks(ctx context.Context, listID string, includeCompleted bool) ([]service.TaskInput, error) {
	const op = "list google tasks"
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	call := c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(includeCompleted).
		ShowHidden(includeCompleted).
		ShowDeleted(false)

	var result []service.TaskInput
	err := call.Pages(ctx, func(resp *tasks.Tasks) error {
		for _, t := range resp.Items {
			if t.Deleted || strings.TrimSpace(t.Title) == "" {
				continue
			}
			result = append(result, toInput(t))
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(op, err)
	}
	return result, nil
}

// toInput maps a Google task onto board task input.
func toInput(t *tasks.Task) service.TaskInput {
	in := service.TaskInput{
		Title:       strings.TrimSpace(t.Title),
		Description: t.Notes,
		Status:      service.ParseStatus(t.Status),
	}
	if !in.Status.Valid() {
		in.Status = service.StatusNotStarted
	}
	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			in.Due = &due
		}
	}
	return in
}

// wrapError turns API errors into service errors so callers map them to
// exit codes the same way as backend errors.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return service.StatusError(op, gerr.Code, gerr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &service.Error{Kind: service.KindTransport, Op: op, Message: "request timed out", Err: err}
	}
	return &service.Error{Kind: service.KindTransport, Op: op, Err: err}
}
