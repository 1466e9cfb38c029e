package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/remindd/remindd/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokenPath := filepath.Join(t.TempDir(), "token")
	c := NewClient(Config{ServerURL: server.URL, TokenPath: tokenPath})
	return c, tokenPath
}

func TestLoginRemember(t *testing.T) {
	c, tokenPath := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/login" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "alice" || creds["password"] != "secret" {
			t.Errorf("credentials = %v", creds)
		}
		json.NewEncoder(w).Encode(map[string]string{"key": "tok123"})
	}))

	key, err := c.Login(context.Background(), "alice", "secret", true)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if key != "tok123" {
		t.Errorf("key = %q, want tok123", key)
	}
	if !c.IsAuthenticated() {
		t.Error("client should be authenticated after login")
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	if string(data) != "tok123" {
		t.Errorf("persisted token = %q", data)
	}
}

func TestLoginNoRemember(t *testing.T) {
	c, tokenPath := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"key": "tok123"})
	}))

	if _, err := c.Login(context.Background(), "alice", "secret", false); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Error("token file should not exist without remember")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	if _, err := c.Login(context.Background(), "alice", "wrong", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if c.IsAuthenticated() {
		t.Error("client must not be authenticated after failed login")
	}
}

func TestTokenLoadedAtConstruction(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenPath, []byte("saved\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(model.Account{Username: "alice"})
	}))
	defer server.Close()

	c := NewClient(Config{ServerURL: server.URL, TokenPath: tokenPath})
	if !c.IsAuthenticated() {
		t.Fatal("client should load persisted token")
	}

	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("current user: %v", err)
	}
	if gotAuth != "Token saved" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Token saved")
	}
}

func TestLogoutClearsToken(t *testing.T) {
	c, tokenPath := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/login" {
			json.NewEncoder(w).Encode(map[string]string{"key": "tok123"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if _, err := c.Login(context.Background(), "alice", "secret", true); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("client should not be authenticated after logout")
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Error("token file should be removed on logout")
	}
}

func TestRegister(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"created", http.StatusCreated, "", nil},
		{"missing username", http.StatusBadRequest, `{"non_field_errors":["username"]}`, ErrUsernameMissing},
		{"missing email", http.StatusBadRequest, `{"non_field_errors":["email"]}`, ErrEmailMissing},
		{"duplicate", http.StatusBadRequest, `{}`, ErrUserExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if auth := r.Header.Get("Authorization"); auth != "" {
					t.Errorf("registration sent Authorization header %q", auth)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))

			err := c.Register(context.Background(), "alice", "a@example.com")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("CurrentUser err = %v, want ErrAuthRequired", err)
	}
	if _, err := c.ListBackups(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("ListBackups err = %v, want ErrAuthRequired", err)
	}
	if err := c.UploadBackup(context.Background(), &model.BackupRecord{}); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("UploadBackup err = %v, want ErrAuthRequired", err)
	}
	if _, err := c.DownloadBackup(context.Background(), "abc"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("DownloadBackup err = %v, want ErrAuthRequired", err)
	}
}

func TestDeleteBackupAuthSignaledWithBadRequest(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	if err := c.DeleteBackup(context.Background(), "abc"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("err = %v, want ErrAuthRequired", err)
	}
}

func TestUploadBackupDuplicate(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	err := c.UploadBackup(context.Background(), &model.BackupRecord{Digest: "abc"})
	if !errors.Is(err, ErrBackupExists) {
		t.Errorf("err = %v, want ErrBackupExists", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	stored := map[string]*model.BackupRecord{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/backups/create":
			var record model.BackupRecord
			json.NewDecoder(r.Body).Decode(&record)
			stored[record.Digest] = &record
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/api/v1/backups/":
			var metas []model.BackupMeta
			for _, rec := range stored {
				metas = append(metas, model.BackupMeta{Digest: rec.Digest, Timestamp: rec.Timestamp})
			}
			json.NewEncoder(w).Encode(metas)
		default:
			digest := filepath.Base(r.URL.Path)
			json.NewEncoder(w).Encode(stored[digest])
		}
	}))

	record := &model.BackupRecord{Version: 1, Digest: "d1", Timestamp: "2026-03-02 10:00:00", Backup: "e30="}
	if err := c.UploadBackup(context.Background(), record); err != nil {
		t.Fatalf("upload: %v", err)
	}

	metas, err := c.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 1 || metas[0].Digest != "d1" {
		t.Fatalf("metas = %+v", metas)
	}

	got, err := c.DownloadBackup(context.Background(), "d1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got.Backup != record.Backup || got.Digest != record.Digest {
		t.Errorf("downloaded = %+v, want %+v", got, record)
	}
}

func TestAPIErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Login(context.Background(), "alice", "secret", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.Status)
	}
}

func TestConnectionError(t *testing.T) {
	c := NewClient(Config{ServerURL: "http://127.0.0.1:1", TokenPath: filepath.Join(t.TempDir(), "token")})

	if _, err := c.Login(context.Background(), "alice", "secret", false); !errors.Is(err, ErrConnection) {
		t.Errorf("err = %v, want ErrConnection", err)
	}
}
