package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrExecutableNotFound means no Chromium-family binary could be
// located on this machine.
var ErrExecutableNotFound = errors.New("no engine executable found")

// LocateExecutable finds a Chromium-family binary. An explicit path
// wins; otherwise well-known install locations are checked, then PATH.
func LocateExecutable(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("engine executable %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, path := range executableCandidates() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrExecutableNotFound
}

func executableCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chrome.exe`,
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
		}
	default:
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/usr/bin/brave-browser",
			"/usr/bin/microsoft-edge",
		}
	}
}

var devtoolsClient = &http.Client{Timeout: 5 * time.Second}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func endpointInfo(ctx context.Context, base string) (*versionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(base, "/")+"/json/version", nil)
	if err != nil {
		return nil, err
	}
	resp, err := devtoolsClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools endpoint returned %s", resp.Status)
	}
	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode devtools version: %w", err)
	}
	return &info, nil
}

// Reachable reports whether a devtools endpoint answers at base
// (http://host:port).
func Reachable(ctx context.Context, base string) bool {
	_, err := endpointInfo(ctx, base)
	return err == nil
}

// EndpointProduct reports the product string of a running engine,
// e.g. "Chrome/124.0.6367.60".
func EndpointProduct(ctx context.Context, base string) (string, error) {
	info, err := endpointInfo(ctx, base)
	if err != nil {
		return "", err
	}
	return info.Browser, nil
}

// WebSocketURL resolves the browser websocket URL a remote allocator
// needs from a devtools endpoint.
func WebSocketURL(ctx context.Context, base string) (string, error) {
	info, err := endpointInfo(ctx, base)
	if err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", errors.New("devtools endpoint reported no websocket URL")
	}
	return info.WebSocketDebuggerURL, nil
}
