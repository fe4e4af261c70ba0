package enrichment

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	"github.com/johndauphine/propfolio/internal/logging"
)

// dailyCache caches successful GET responses on disk. The key includes the
// current date so entries expire every day.
type dailyCache struct {
	base http.RoundTripper
	dir  string
}

func (c *dailyCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.base.RoundTrip(req)
	}

	key := fmt.Sprintf("%s %s %s", time.Now().Format("2006-01-02"), req.Method, req.URL.String())
	key = fmt.Sprintf("propfolio-%x", sha1.Sum([]byte(key)))

	if resp, err := c.get(key, req); err == nil {
		logging.Debug("market data cache hit: %s", req.URL.Path)
		return resp, nil
	}

	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	logging.Debug("%v %v%v %v", req.Method, req.URL.Host, req.URL.Path, resp.Status)
	if resp.StatusCode >= 300 {
		return resp, nil
	}

	if err := c.put(key, resp); err != nil {
		logging.Warn("market data cache write failed (ignored): %v", err)
	}
	return resp, nil
}

func (c *dailyCache) path(key string) string {
	dir := c.dir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, key)
}

func (c *dailyCache) get(key string, req *http.Request) (*http.Response, error) {
	content, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewBuffer(content)), req)
}

// put dumps resp to disk. DumpResponse re-buffers the body so resp stays readable.
func (c *dailyCache) put(key string, resp *http.Response) error {
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), content, 0600)
}
