// Package instance tracks a running `ididit serve` through a lockfile in the
// config directory so other commands can find and probe it.
package instance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

// ErrNotRunning is returned by Find when no live server owns the lockfile.
var ErrNotRunning = errors.New("ididit server is not running")

// ErrAlreadyRunning is returned by Acquire when a live server holds the lockfile.
var ErrAlreadyRunning = errors.New("ididit server is already running")

// Lock is the content of the lockfile: "port|pid|secret".
type Lock struct {
	Path   string
	Port   int
	PID    int
	Secret string
}

// Health is the body of GET /healthz.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}

// LockPath returns the lockfile path inside dir.
func LockPath(dir string) string {
	return filepath.Join(dir, constants.ServerLockfileName)
}

// Acquire writes a lockfile for this process. A stale lockfile left by a dead
// process is replaced.
func Acquire(dir string, port int) (*Lock, error) {
	path := LockPath(dir)
	if existing, err := read(path); err == nil {
		if err := validate(existing); err == nil {
			return nil, fmt.Errorf("%w (pid %d, port %d)", ErrAlreadyRunning, existing.PID, existing.Port)
		}
		logger.Warn("replacing stale server lockfile", "path", path)
	}

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	lock := &Lock{Path: path, Port: port, PID: getpidFunc(), Secret: secret}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lockfile directory: %w", err)
	}
	content := fmt.Sprintf("%d|%d|%s", lock.Port, lock.PID, lock.Secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return lock, nil
}

// Release removes the lockfile if it still belongs to this lock.
func (l *Lock) Release() error {
	current, err := read(l.Path)
	if err != nil {
		return nil
	}
	if current.PID != l.PID || current.Secret != l.Secret {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// Find reads the lockfile in dir and checks that its process is a live ididit.
func Find(dir string) (Lock, error) {
	lock, err := read(LockPath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Lock{}, ErrNotRunning
		}
		return Lock{}, err
	}
	if err := validate(lock); err != nil {
		return Lock{}, err
	}
	return lock, nil
}

func read(path string) (Lock, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, err
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return Lock{}, errors.New("lockfile is malformed")
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Lock{}, errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return Lock{}, fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Lock{}, errors.New("invalid process ID in lockfile")
	}
	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return Lock{}, errors.New("secret in lockfile is empty")
	}
	return Lock{Path: path, Port: port, PID: pid, Secret: secret}, nil
}

func validate(lock Lock) error {
	process, err := findProcessFunc(lock.PID)
	if err != nil || process == nil {
		return ErrNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.ServerExecutableName) {
		return fmt.Errorf("process with PID %d is not %s (is %s)", lock.PID, constants.ServerExecutableName, process.Executable())
	}
	return nil
}

func newSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lockfile secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Probe calls the server's health endpoint, authenticating with the lock secret.
func Probe(ctx context.Context, host string, lock Lock) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/healthz", host, lock.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Health{}, err
	}
	req.Header.Set(constants.ServerSecretHeader, lock.Secret)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return Health{}, fmt.Errorf("health check failed with status %d: %s", res.StatusCode, string(body))
	}
	var h Health
	if err := json.NewDecoder(res.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("failed to decode health response: %w", err)
	}
	return h, nil
}
