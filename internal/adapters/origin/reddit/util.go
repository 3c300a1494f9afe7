package reddit

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
)

type rateInfo struct {
	remaining float64
	used      float64
	resetSec  int
}

// parseRateHeaders reads the X-Ratelimit-* headers; Reddit sends floats for
// remaining/used and whole seconds until the window resets
func parseRateHeaders(h http.Header) rateInfo {
	return rateInfo{
		remaining: atof(h.Get("X-Ratelimit-Remaining")),
		used:      atof(h.Get("X-Ratelimit-Used")),
		resetSec:  atoi(h.Get("X-Ratelimit-Reset")),
	}
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func atoi(s string) int {
	i, _ := strconv.Atoi(strings.TrimSpace(s))
	return i
}

// isTransientStatus covers overload, rate limiting and the 403s Reddit hands
// out to throttled clients
func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusForbidden
}

func looksLikeHTML(h http.Header, body []byte) bool {
	if strings.HasPrefix(strings.ToLower(h.Get("Content-Type")), "text/html") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
