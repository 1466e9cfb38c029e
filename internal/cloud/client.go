package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/remindd/remindd/internal/model"
)

// Config holds sync client configuration.
type Config struct {
	// ServerURL is the scheme and host of the sync server, without the
	// /api/v1 suffix.
	ServerURL string
	// TokenPath is the file the session token is persisted to when the
	// user asks to be remembered.
	TokenPath string
	Timeout   time.Duration
}

// Client talks to the account-scoped backup repository. It holds the
// session token; a token found on disk at construction time means a
// remembered session. Login and Logout are serialized against each
// other so the token file is never written and removed concurrently.
type Client struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
	token      string
}

// NewClient creates a sync client and loads a persisted session token
// if one exists.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}

	if data, err := os.ReadFile(cfg.TokenPath); err == nil {
		c.token = strings.TrimSpace(string(data))
	}

	return c
}

// IsAuthenticated reports whether a session token is held in memory.
// The token may still be rejected by the server; calls surface that as
// ErrAuthRequired.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) url(route string) string {
	return strings.TrimSuffix(c.cfg.ServerURL, "/") + APIBase + route
}

// do issues one JSON request. withAuth controls whether the session
// token is attached; registration deliberately runs unauthenticated.
func (c *Client) do(ctx context.Context, method, route string, body any, withAuth bool) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(route), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if withAuth {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return resp, nil
}

// Login authenticates and stores the session token. With remember set,
// the token is also persisted to disk so the session survives
// restarts.
func (c *Client) Login(ctx context.Context, username, password string, remember bool) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, routeLogin, map[string]string{
		"username": username,
		"password": password,
	}, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return "", ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Op: "login", Status: resp.StatusCode}
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = result.Key
	if remember {
		if err := os.WriteFile(c.cfg.TokenPath, []byte(result.Key), 0o600); err != nil {
			return "", fmt.Errorf("persist token: %w", err)
		}
	}
	return result.Key, nil
}

// Logout invalidates the server session and forgets the token, both in
// memory and on disk.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, routeLogout, nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: "logout", Status: resp.StatusCode}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	if err := os.Remove(c.cfg.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Register creates an account. The server emails the initial password,
// so only username and email are sent. The call runs without the
// session token so an existing session cannot leak into registration.
func (c *Client) Register(ctx context.Context, username, email string) error {
	resp, err := c.do(ctx, http.MethodPost, routeAccountCreate, map[string]string{
		"username": username,
		"email":    email,
	}, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		var result struct {
			NonFieldErrors []string `json:"non_field_errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
			for _, field := range result.NonFieldErrors {
				switch field {
				case "username":
					return ErrUsernameMissing
				case "email":
					return ErrEmailMissing
				}
			}
		}
		return ErrUserExists
	}
	if resp.StatusCode != http.StatusCreated {
		return &APIError{Op: "register", Status: resp.StatusCode}
	}
	return nil
}

// CurrentUser fetches the authenticated account.
func (c *Client) CurrentUser(ctx context.Context) (*model.Account, error) {
	resp, err := c.do(ctx, http.MethodGet, routeAccountDetails, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "user retrieving", Status: resp.StatusCode}
	}

	var account model.Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &account, nil
}

// UpdateAccount changes account fields. Only the backup quota is
// editable from the client today; nil leaves it unchanged.
func (c *Client) UpdateAccount(ctx context.Context, maxBackups *int) (*model.Account, error) {
	body := map[string]any{}
	if maxBackups != nil {
		body["max_backups"] = *maxBackups
	}

	resp, err := c.do(ctx, http.MethodPost, routeAccountEdit, body, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &APIError{Op: "user updating", Status: resp.StatusCode}
	}

	var account model.Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &account, nil
}

// RequestConfirmationCode asks the server to email a password reset
// code.
func (c *Client) RequestConfirmationCode(ctx context.Context, email string) error {
	resp, err := c.do(ctx, http.MethodPost, routeAccountSendCode, map[string]string{"email": email}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return &APIError{Op: "token request", Status: resp.StatusCode}
	}
	return nil
}

// ResetPassword sets a new password using an emailed confirmation
// code.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword, confirm, code string) error {
	resp, err := c.do(ctx, http.MethodPost, routeAccountPasswordReset, map[string]string{
		"email":                email,
		"new_password":         newPassword,
		"new_password_confirm": confirm,
		"confirmation_code":    code,
	}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return &APIError{Op: "password reset", Status: resp.StatusCode}
	}
	return nil
}

// ListBackups returns metadata for every backup stored for the
// account.
func (c *Client) ListBackups(ctx context.Context) ([]model.BackupMeta, error) {
	resp, err := c.do(ctx, http.MethodGet, routeBackups, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "reading backups", Status: resp.StatusCode}
	}

	var backups []model.BackupMeta
	if err := json.NewDecoder(resp.Body).Decode(&backups); err != nil {
		return nil, fmt.Errorf("decode backups: %w", err)
	}
	return backups, nil
}

// UploadBackup stores a codec-produced record under the account. The
// server keys backups by digest, so re-uploading identical content
// fails with ErrBackupExists.
func (c *Client) UploadBackup(ctx context.Context, record *model.BackupRecord) error {
	resp, err := c.do(ctx, http.MethodPost, routeBackupCreate, record, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthRequired
	case resp.StatusCode == http.StatusBadRequest:
		return ErrBackupExists
	case resp.StatusCode != http.StatusCreated:
		return &APIError{Op: "backup uploading", Status: resp.StatusCode}
	}
	return nil
}

// DownloadBackup fetches the full record for the given digest.
func (c *Client) DownloadBackup(ctx context.Context, digest string) (*model.BackupRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, routeBackupDetails+digest, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "backup downloading", Status: resp.StatusCode}
	}

	var record model.BackupRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode backup record: %w", err)
	}
	return &record, nil
}

// DeleteBackup removes the backup with the given digest from the
// server. The API signals a missing session with 400 on this route.
func (c *Client) DeleteBackup(ctx context.Context, digest string) error {
	resp, err := c.do(ctx, http.MethodPost, routeBackupDelete+digest, nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return ErrAuthRequired
	}
	if resp.StatusCode != http.StatusCreated {
		return &APIError{Op: "backup deleting", Status: resp.StatusCode}
	}
	return nil
}
