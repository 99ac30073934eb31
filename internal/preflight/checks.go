package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"fieldsync/internal/config"
	"fieldsync/internal/hierarchy"
	"fieldsync/internal/logging"
	"fieldsync/internal/transport"
)

const serverCheckTimeout = 5 * time.Second

// CheckServer verifies that the inference server answers and accepts the
// configured credentials. Any non-auth HTTP response counts as reachable
// because the server exposes no dedicated health endpoint.
func CheckServer(ctx context.Context, cfg *config.Config, serverURL string) Result {
	const name = "Inference server"

	if err := config.ValidateServerURL(serverURL); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	client, err := transport.NewFromConfig(cfg, serverURL, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serverCheckTimeout)
	defer cancel()

	code, err := client.Ping(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", client.BaseURL(), summarizeError(err))}
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s (auth failed, check server.api_key)", client.BaseURL())}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, http %d)", client.BaseURL(), code)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStateLock reports whether another fieldsync process holds the state
// lock. The lock is released immediately after probing.
func CheckStateLock(path string) Result {
	const name = "State lock"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Result{Name: name, Passed: true, Detail: "free (not created yet)"}
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%s (held by another fieldsync process)", path)}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "free"}
}

// CheckManifest verifies that the hierarchy manifest parses and lists videos.
func CheckManifest(path string) Result {
	const name = "Manifest"

	m, err := hierarchy.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := m.MediaItems(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	fields, plants, leaves, videos := m.Counts()
	detail := fmt.Sprintf("%s (%d fields, %d plants, %d leaves, %d videos)", path, fields, plants, leaves, videos)
	if videos == 0 {
		return Result{Name: name, Detail: detail + " no videos to sync"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// summarizeError produces a human-readable summary for server check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (server unreachable)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.TrimSpace(opErr.Err.Error())
	}
	return err.Error()
}
