package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/realtime"
)

func fakeForum(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer",
			"user":{"id":"u1","username":"alice","display_name":"Alice","role":"admin"}}`))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"missing token"}`))
			return
		}
		w.Write([]byte(`{"user":{"id":"u1","username":"alice","display_name":"Alice","role":"admin","thread_count":2}}`))
	})
	mux.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "golang", r.URL.Query().Get("tag"))
		w.Write([]byte(`{"threads":[{"id":"t1","title":"Hello gophers","status":"open","post_count":3,
			"tags":["golang"],"author":{"id":"u1","username":"alice"}}],"meta":{"total":1,"limit":20,"offset":0}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newCLI()
	var out, errOut bytes.Buffer
	c.in = strings.NewReader("")
	c.out = &out
	c.errOut = &errOut

	root := newRootCmd(c)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPersistsSession(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	srv := fakeForum(t)

	out, err := run(t, "--api", srv.URL, "auth", "login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as alice (admin)")

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = run(t, "--api", srv.URL, "auth", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "Threads:  2")
}

func TestMeWithoutSessionIsUnauthorized(t *testing.T) {
	t.Setenv(configDirEnv, t.TempDir())
	srv := fakeForum(t)

	_, err := run(t, "--api", srv.URL, "auth", "me")
	require.Error(t, err)
	assert.True(t, client.IsUnauthorized(err))
}

func TestThreadsListOutputs(t *testing.T) {
	t.Setenv(configDirEnv, t.TempDir())
	srv := fakeForum(t)

	out, err := run(t, "--api", srv.URL, "threads", "list", "--tag", "golang")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello gophers")
	assert.Contains(t, out, "@alice")

	out, err = run(t, "--api", srv.URL, "-o", "json", "threads", "list", "--tag", "golang")
	require.NoError(t, err)
	var list client.ThreadList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Threads, 1)
	assert.Equal(t, "t1", list.Threads[0].ID)
}

func TestUnknownOutputFormat(t *testing.T) {
	t.Setenv(configDirEnv, t.TempDir())

	_, err := run(t, "-o", "yaml", "threads", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestNotificationsReadNeedsIDsOrAll(t *testing.T) {
	t.Setenv(configDirEnv, t.TempDir())

	_, err := run(t, "notifications", "read")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass notification ids or --all")

	_, err = run(t, "notifications", "read", "--all", "n1")
	require.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	t.Setenv(client.BaseURLEnv, "https://api.khoshgolpo.dev")

	s, err := loadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.khoshgolpo.dev", s.BaseURL)
	assert.Equal(t, 15*time.Second, s.Timeout)
	assert.Equal(t, formatText, s.Output)
	assert.Equal(t, filepath.Join(dir, "credentials.json"), s.CredentialsPath)

	cfg := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[api]\nbase_url = \"http://forum.local\"\ntimeout = \"5s\"\n\n[output]\nformat = \"json\"\n"), 0o600))

	s, err = loadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "http://forum.local", s.BaseURL)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, formatJSON, s.Output)
	assert.Equal(t, filepath.Join(dir, "khoshgolpo-cli.log"), s.LogFile)

	t.Setenv("KHOSHGOLPO_API_URL", "http://env.local")
	s, err = loadSettings("")
	require.NoError(t, err)
	assert.Equal(t, "http://env.local", s.BaseURL)
}

func TestFileStore(t *testing.T) {
	store := newFileStore(filepath.Join(t.TempDir(), "credentials.json"))

	_, ok := store.Load()
	assert.False(t, ok)
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(&client.Session{AccessToken: "a", RefreshToken: "r"}))
	s, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "r", s.RefreshToken)

	require.NoError(t, store.Clear())
	_, ok = store.Load()
	assert.False(t, ok)
}

func TestFormatEvent(t *testing.T) {
	post := realtime.Event{Type: realtime.EventPostCreated, Payload: []byte(`{"id":"p1","thread_id":"t1","body":"hi there","author":{"username":"bob"}}`)}
	thread := realtime.Event{Type: realtime.EventThreadCreated, Payload: []byte(`{"id":"t2","title":"New"}`)}

	line, ok := formatEvent(post, "")
	require.True(t, ok)
	assert.Contains(t, line, "@bob in t1: hi there")

	_, ok = formatEvent(post, "t9")
	assert.False(t, ok)
	_, ok = formatEvent(thread, "t1")
	assert.False(t, ok)

	line, ok = formatEvent(thread, "")
	require.True(t, ok)
	assert.Contains(t, line, `"New"`)

	_, ok = formatEvent(realtime.Event{Type: "system"}, "")
	assert.False(t, ok)
}
