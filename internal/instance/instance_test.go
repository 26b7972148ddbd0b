package instance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"testing"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/ididit/internal/constants"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func withProcesses(t *testing.T, procs map[int]string) {
	t.Helper()
	oldFind, oldPid := findProcessFunc, getpidFunc
	t.Cleanup(func() { findProcessFunc, getpidFunc = oldFind, oldPid })
	findProcessFunc = func(pid int) (ps.Process, error) {
		exe, ok := procs[pid]
		if !ok {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: exe}, nil
	}
	getpidFunc = func() int { return 4242 }
}

func TestAcquireFindRelease(t *testing.T) {
	withProcesses(t, map[int]string{4242: "ididit"})
	dir := t.TempDir()

	if _, err := Find(dir); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Find() without lockfile error = %v, want ErrNotRunning", err)
	}

	lock, err := Acquire(dir, 8484)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if lock.PID != 4242 || lock.Port != 8484 || len(lock.Secret) != 32 {
		t.Errorf("Acquire() = %+v", lock)
	}

	found, err := Find(dir)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found != *lock {
		t.Errorf("Find() = %+v, want %+v", found, *lock)
	}

	if _, err := Acquire(dir, 9000); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Acquire() error = %v, want ErrAlreadyRunning", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(LockPath(dir)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lockfile still present after Release(): %v", err)
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	withProcesses(t, map[int]string{4242: "ididit", 777: "bash"})
	dir := t.TempDir()
	for _, content := range []string{"8484|999|dead", "8484|777|notus"} {
		if err := os.WriteFile(LockPath(dir), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		lock, err := Acquire(dir, 8485)
		if err != nil {
			t.Fatalf("Acquire() over %q error = %v", content, err)
		}
		if lock.Port != 8485 {
			t.Errorf("Acquire() port = %d", lock.Port)
		}
	}
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	withProcesses(t, map[int]string{4242: "ididit"})
	dir := t.TempDir()
	lock, err := Acquire(dir, 8484)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(LockPath(dir), []byte("8484|4242|someone-else"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(LockPath(dir)); err != nil {
		t.Errorf("Release() removed a lockfile it does not own: %v", err)
	}
}

func TestFindRejectsMalformed(t *testing.T) {
	withProcesses(t, map[int]string{1: "ididit"})
	dir := t.TempDir()
	for _, content := range []string{"invalid", "8080|1", "abc|1|s", "70000|1|s", "8080|x|s", "8080|1| "} {
		if err := os.WriteFile(LockPath(dir), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := Find(dir); err == nil {
			t.Errorf("Find() accepted lockfile %q", content)
		}
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" || r.Header.Get(constants.ServerSecretHeader) != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("nope"))
			return
		}
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Version: constants.Version, Sessions: 2})
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	h, err := Probe(context.Background(), u.Hostname(), Lock{Port: port, Secret: "s3cret"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if h.Status != "ok" || h.Sessions != 2 {
		t.Errorf("Probe() = %+v", h)
	}

	if _, err := Probe(context.Background(), u.Hostname(), Lock{Port: port, Secret: "wrong"}); err == nil {
		t.Error("Probe() with the wrong secret succeeded")
	}
}
