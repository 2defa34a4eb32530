package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skycast/config"
	"skycast/storage"
)

// maxBody bounds the size of an upstream response.
const maxBody = 16 << 20

// Profile is the HTTP client configuration of one upstream API. Each API
// client receives its profile at construction.
type Profile struct {
	Name      string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// ProfileFromConfig builds a Profile from its settings entry.
func ProfileFromConfig(name string, pc config.ProfileConfig) Profile {
	return Profile{
		Name:      name,
		BaseURL:   pc.BaseURL,
		UserAgent: pc.UserAgent,
		Timeout:   pc.Timeout,
	}
}

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// apiClient performs JSON GETs against one profile, going through the
// response cache when one is configured.
type apiClient struct {
	profile Profile
	http    *http.Client
	cache   *storage.ResponseCache
	now     func() time.Time
}

func newAPIClient(p Profile, cache *storage.ResponseCache) *apiClient {
	return &apiClient{
		profile: p,
		http: &http.Client{
			Timeout:   p.Timeout,
			Transport: &userAgentTransport{userAgent: p.UserAgent, base: http.DefaultTransport},
		},
		cache: cache,
		now:   time.Now,
	}
}

// resolve joins a relative path onto the profile base URL. Absolute URLs,
// such as the forecast link returned by /points, are used as-is.
func (c *apiClient) resolve(path string, query url.Values) (string, error) {
	var raw string
	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		raw = path
	default:
		raw = strings.TrimRight(c.profile.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s url %q: %w", c.profile.Name, raw, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// getJSON fetches path and decodes the body into v.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, v any) (string, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return "", err
	}

	body, err := c.get(ctx, target)
	if err != nil {
		return target, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return target, fmt.Errorf("decode %s response: %w", c.profile.Name, err)
	}
	return target, nil
}

func (c *apiClient) get(ctx context.Context, target string) ([]byte, error) {
	var cached *storage.CachedResponse
	if c.cache != nil {
		hit, err := c.cache.Get(ctx, target)
		switch {
		case err != nil:
			if config.DebugLog != nil {
				config.DebugLog.Printf("[CACHE] Lookup failed for %s: %v", target, err)
			}
		case hit != nil && hit.Fresh(c.now()):
			if config.DebugLog != nil {
				config.DebugLog.Printf("[CACHE] Hit %s (expires %s)", target, hit.Expires.Format(time.RFC3339))
			}
			return hit.Body, nil
		default:
			cached = hit
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if cached != nil && cached.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.LastModified)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[WEATHER] GET %s", target)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.profile.Name, err)
	}
	defer resp.Body.Close()

	expires := parseHTTPTime(resp.Header.Get("Expires"))

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		if err := c.cache.Touch(ctx, target, expires); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[CACHE] Touch failed for %s: %v", target, err)
		}
		return cached.Body, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.profile.Name, err)
	}

	if c.cache != nil {
		entry := storage.CachedResponse{
			URL:          target,
			Body:         body,
			ContentType:  resp.Header.Get("Content-Type"),
			LastModified: resp.Header.Get("Last-Modified"),
			Expires:      expires,
			FetchedAt:    c.now(),
		}
		if err := c.cache.Put(ctx, entry); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[CACHE] Store failed for %s: %v", target, err)
		}
	}

	return body, nil
}

func parseHTTPTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}
	}
	return t
}
