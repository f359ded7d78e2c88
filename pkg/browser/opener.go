package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Opener shows a URL to the human operator in their own browser.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// CommandFunc runs a platform helper. Tests replace it.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// SystemOpener opens URLs with the platform's window scripting: AppleScript
// driving Safari on macOS, xdg-open on Linux, the URL handler on Windows.
type SystemOpener struct {
	GOOS    string
	Timeout time.Duration
	Run     CommandFunc
}

func NewSystemOpener(timeout time.Duration) *SystemOpener {
	return &SystemOpener{GOOS: runtime.GOOS, Timeout: timeout, Run: runCombined}
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (o *SystemOpener) Open(ctx context.Context, url string) error {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	name, args, err := openCommand(o.GOOS, url)
	if err != nil {
		return err
	}
	out, err := o.Run(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func openCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "osascript", []string{"-e", safariScript(url)}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("no window opener for %s", goos)
	}
}

func safariScript(url string) string {
	quoted := strings.ReplaceAll(url, `"`, `\"`)
	return `tell application "Safari"
	activate
	if (count of windows) = 0 then make new document
	set newTab to make new tab at end of tabs of window 1
	set URL of newTab to "` + quoted + `"
	set current tab of window 1 to newTab
end tell`
}
