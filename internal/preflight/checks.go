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

	"golang.org/x/sys/unix"

	"ratingsync/internal/providers/tmdb"
	"ratingsync/internal/providers/tvdb"
	"ratingsync/internal/services"
)

const checkTimeout = 10 * time.Second

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

// CheckCatalog verifies that the media server database exists and that this
// process may write ratings into it.
func CheckCatalog(path string) Result {
	const name = "Plex catalog"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not found; check PLEX_DATA_DIR)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTMDB verifies the TMDB key against the configuration endpoint.
func CheckTMDB(ctx context.Context, baseURL, apiKey string) Result {
	const name = "TMDB"

	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	client, err := tmdb.New(apiKey, baseURL, tmdb.WithTimeout(checkTimeout))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := client.Verify(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckTVDB performs a login with the configured key.
func CheckTVDB(ctx context.Context, baseURL, apiKey string) Result {
	const name = "TVDB"

	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if _, err := tvdb.Login(checkCtx, baseURL, apiKey, tvdb.WithTimeout(checkTimeout)); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDataset issues a HEAD request against the ratings dataset.
func CheckDataset(ctx context.Context, url string) Result {
	const name = "IMDB dataset"

	if strings.TrimSpace(url) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// summarizeProviderError produces a human-readable summary for a failed check.
func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	if errors.Is(err, services.ErrAuthentication) {
		return "auth failed (invalid api key)"
	}
	return err.Error()
}
