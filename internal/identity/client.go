package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ayursutra/therapy-portal/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Client talks to the identity provider's server-side REST API using the
// instance secret key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a provider client. baseURL is the provider API root,
// e.g. https://api.clerk.com/v1.
func NewClient(baseURL, apiKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// providerUser is the wire shape the provider returns for a user.
type providerUser struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	PublicMetadata struct {
		Role string `json:"role"`
	} `json:"public_metadata"`
}

func (p providerUser) toUser() *User {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	email := ""
	if len(p.EmailAddresses) > 0 {
		email = p.EmailAddresses[0].EmailAddress
	}
	return &User{
		ID:    p.ID,
		Name:  name,
		Email: email,
		Role:  p.PublicMetadata.Role,
	}
}

// GetUser fetches one directory entry.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var pu providerUser
	if err := c.do(ctx, http.MethodGet, "/users/"+id, nil, &pu); err != nil {
		return nil, err
	}
	return pu.toUser(), nil
}

// ListUsers fetches the directory ordered newest-first, as the dashboards
// display it.
func (c *Client) ListUsers(ctx context.Context) ([]*User, error) {
	var pus []providerUser
	if err := c.do(ctx, http.MethodGet, "/users?order_by=-created_at&limit=500", nil, &pus); err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(pus))
	for _, pu := range pus {
		users = append(users, pu.toUser())
	}
	return users, nil
}

// SetRole writes the role into the user's public metadata.
func (c *Client) SetRole(ctx context.Context, id, role string) (*User, error) {
	if role != "patient" && role != "doctor" {
		return nil, ErrInvalidRole
	}
	body := map[string]any{
		"public_metadata": map[string]string{"role": role},
	}
	var pu providerUser
	if err := c.do(ctx, http.MethodPatch, "/users/"+id+"/metadata", body, &pu); err != nil {
		return nil, err
	}
	// Some providers return the metadata object rather than the full user;
	// refetch when the payload has no id.
	if pu.ID == "" {
		return c.GetUser(ctx, id)
	}
	return pu.toUser(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("identity provider error",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(raw))
		return fmt.Errorf("identity: provider returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("identity: decode response: %w", err)
		}
	}
	return nil
}
