package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atelierhq/atelier-api/internal/config"
	"github.com/pkg/errors"
)

// Session is the provider-issued session material returned by sign-in and
// code exchange. The access token is an HS256 JWT signed with the shared
// project secret, so it can be verified locally without a round trip.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailRegistered    = errors.New("email is already registered")
	ErrUserNotFound       = errors.New("auth user not found")
)

// Client talks to the provider with the restricted anonymous key. It can
// authenticate end users but cannot create or delete accounts.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// AdminClient talks to the provider with the privileged service key. Only
// the invitation lifecycle manager and the account provisioner hold one.
type AdminClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.AuthProviderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.AnonKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func NewAdminClient(cfg config.AuthProviderConfig) *AdminClient {
	return &AdminClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.AdminKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SignInWithPassword exchanges email/password credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}

	var session Session
	status, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/token?grant_type=password", c.apiKey, payload, &session)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign in")
	}
	switch {
	case status == http.StatusOK:
		return session, nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return Session{}, ErrInvalidCredentials
	}
	return Session{}, errors.Errorf("sign in: unexpected status %d", status)
}

// ExchangeCode redeems an OAuth authorization code for a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Session, error) {
	payload := map[string]string{"auth_code": code}

	var session Session
	status, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/token?grant_type=authorization_code", c.apiKey, payload, &session)
	if err != nil {
		return Session{}, errors.Wrap(err, "exchange code")
	}
	if status != http.StatusOK {
		return Session{}, errors.Errorf("exchange code: unexpected status %d", status)
	}
	return session, nil
}

// CreateUser provisions a credential at the provider. An accepted
// invitation is the proof of email ownership, so confirmed skips the
// provider's own confirmation email.
func (a *AdminClient) CreateUser(ctx context.Context, email, password string, confirmed bool) (string, error) {
	payload := map[string]interface{}{
		"email":         email,
		"password":      password,
		"email_confirm": confirmed,
	}

	var created struct {
		ID string `json:"id"`
	}
	status, err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/admin/users", a.apiKey, payload, &created)
	if err != nil {
		return "", errors.Wrap(err, "create auth user")
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		if created.ID == "" {
			return "", errors.New("create auth user: provider returned no id")
		}
		return created.ID, nil
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return "", ErrEmailRegistered
	}
	return "", errors.Errorf("create auth user: unexpected status %d", status)
}

// DeleteUser removes a credential. This is the compensating action for a
// provisioning step that failed after the credential was created.
func (a *AdminClient) DeleteUser(ctx context.Context, principalID string) error {
	url := fmt.Sprintf("%s/admin/users/%s", a.baseURL, principalID)
	status, err := doJSON(ctx, a.http, http.MethodDelete, url, a.apiKey, nil, nil)
	if err != nil {
		return errors.Wrap(err, "delete auth user")
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrUserNotFound
	}
	return errors.Errorf("delete auth user: unexpected status %d", status)
}

func doJSON(ctx context.Context, client *http.Client, method, url, apiKey string, payload, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decode provider response")
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
