package network

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds a whole page fetch.
const DefaultTimeout = 30 * time.Second

// NewClient returns a direct client, or a SOCKS5 one when proxyAddr is set.
func NewClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	if proxyAddr == "" {
		return NewDirectClient(timeout), nil
	}
	return NewProxyClient(proxyAddr, timeout)
}

func NewDirectClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewProxyClient creates an http.Client that dials through SOCKS5 (Tor or any
// other local proxy).
func NewProxyClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", proxyAddr, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Dial: dialer.Dial,
		// one-shot fetches, each page through a fresh circuit
		DisableKeepAlives: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
