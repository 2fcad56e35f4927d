package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"arkimedes/internal/config"
	"arkimedes/internal/deps"
	"arkimedes/internal/ezid"
)

// Pinger verifies registry reachability and credentials. *ezid.Client
// implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckRegistry logs in to the registry with a single attempt.
func CheckRegistry(ctx context.Context, pinger Pinger) Result {
	const name = "Registry"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := pinger.Ping(checkCtx)
	if err == nil {
		return Result{Name: name, Passed: true, Detail: "login ok"}
	}
	var regErr *ezid.RegistryError
	if errors.As(err, &regErr) && (regErr.Status == http.StatusUnauthorized || regErr.Status == http.StatusForbidden) {
		return Result{Name: name, Detail: "auth failed (check EZID username and password)"}
	}
	return Result{Name: name, Detail: summarizeError(err)}
}

// CheckCredentials reports whether registry credentials and a shoulder are
// configured.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Credentials"

	if !cfg.HasCredentials() {
		return Result{Name: name, Detail: "missing username or password"}
	}
	if strings.TrimSpace(cfg.Registry.Shoulder) == "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("user %s (no default shoulder)", cfg.Registry.Username)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("user %s, shoulder %s", cfg.Registry.Username, cfg.Registry.Shoulder)}
}

// CheckEndpoint verifies that an HTTP service answers below 500.
func CheckEndpoint(ctx context.Context, name, endpoint string) Result {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("unavailable (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess reports whether path is a directory the current user
// can list, create files in and enter.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: path + ": " + fmt.Sprintf(format, args...)}
	}
	switch info, err := os.Stat(path); {
	case errors.Is(err, fs.ErrNotExist):
		return fail("missing (run 'arkimedes config validate' to create it)")
	case err != nil:
		return fail("%v", err)
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("not writable (%v)", err)
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the external binaries used by report ingestion.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.Check(deps.Poppler(cfg.PDFToTextBinary())...)
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
