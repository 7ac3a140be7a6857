// Package geo resolves download-log IPs to country codes.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidIP = errors.New("invalid ip address")

// LookupError is an answer the API marked as failed (reserved range, rate
// limit and the like).
type LookupError struct {
	IP     string
	Reason string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %s", e.IP, e.Reason)
}

// Client talks to an ipapi.co-compatible service: GET {base}/{ip}/json/.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Lookup returns the ISO country code of ip.
func (c *Client) Lookup(ctx context.Context, ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	endpoint := fmt.Sprintf("%s/%s/json/", c.base, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", ip, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &LookupError{IP: ip, Reason: resp.Status}
	}

	var out lookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error {
		return "", &LookupError{IP: ip, Reason: out.Reason}
	}
	if out.CountryCode == "" {
		return "", &LookupError{IP: ip, Reason: "no country code"}
	}
	return strings.ToUpper(out.CountryCode), nil
}
