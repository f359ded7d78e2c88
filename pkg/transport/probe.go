package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ProbeResult describes how the service answered an authenticated GET.
type ProbeResult struct {
	StatusCode    int    `json:"status_code"`
	Location      string `json:"location,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// ProbeSession requests serviceURL with cookieHeader and reports whether the
// service accepted the session: a 2xx that is not a login page. A redirect
// to a login path, 401 or 403 means the cookies are stale.
func ProbeSession(ctx context.Context, client *http.Client, serviceURL, cookieHeader string) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: %w", serviceURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res := ProbeResult{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Authenticated = !isLoginURL(resp.Request.URL)
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		res.Authenticated = false
	}
	return res, nil
}

func isLoginURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.Contains(p, "/login") || strings.Contains(p, "/signin")
}
