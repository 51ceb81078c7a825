// ABOUTME: HTTP stream source for progressive radio streams
// ABOUTME: Opens the endpoint with connect timeouts and optional ICY metadata
package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/harper/radio-player/internal/domain"
)

type HTTPConfig struct {
	ConnectTimeout time.Duration
	Headers        map[string]string
	// ICYMetadata asks the server to interleave ICY metadata blocks.
	ICYMetadata bool
	UserAgent   string
}

type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTPSource {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
		DisableCompression:    true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   0, // No total timeout for streaming
	}

	return &HTTPSource{
		cfg:    cfg,
		client: client,
	}
}

func (h *HTTPSource) Connect(ctx context.Context, uri string) (*domain.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if h.cfg.ICYMetadata {
		req.Header.Set("Icy-MetaData", "1")
	} else {
		req.Header.Set("Icy-MetaData", "0")
	}
	if h.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", h.cfg.UserAgent)
	}

	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	stream := &domain.Stream{
		Body: resp.Body,
		Name: resp.Header.Get("icy-name"),
	}

	if h.cfg.ICYMetadata {
		if v := resp.Header.Get("icy-metaint"); v != "" {
			metaInt, err := strconv.Atoi(v)
			if err != nil || metaInt <= 0 {
				resp.Body.Close()
				return nil, fmt.Errorf("invalid icy-metaint %q", v)
			}
			stream.MetaInt = metaInt
		}
	}

	return stream, nil
}
