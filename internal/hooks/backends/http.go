package backends

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTPHook calls a vendor device's HTTP shutdown endpoint. It carries a
// bounded client timeout and no retries of its own; retries are the
// executor's job.
type HTTPHook struct {
	url     string
	method  string
	testURL string
	client  *http.Client
}

func NewHTTPHook(config map[string]string) (*HTTPHook, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http hook: url is required")
	}
	method := config["method"]
	if method == "" {
		method = http.MethodPost
	}
	timeoutSeconds := 10
	if v, ok := config["timeoutSeconds"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSeconds = parsed
		}
	}

	return &HTTPHook{
		url:     url,
		method:  method,
		testURL: config["testUrl"],
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

func (h *HTTPHook) Execute() (bool, error) {
	return h.call(h.url)
}

func (h *HTTPHook) TestConnection() (bool, error) {
	target := h.testURL
	if target == "" {
		target = h.url
	}
	return h.call(target)
}

func (h *HTTPHook) call(url string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, h.method, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("device endpoint returned status %d", resp.StatusCode)
	}
	return true, nil
}
