package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"interviewlab/internal/retry"
)

// RemoteBackend submits code to a hosted execution service. The wire format
// carries source and stdin base64-encoded and returns base64 stdout/stderr
// plus wall time in seconds.
type RemoteBackend struct {
	url      string
	apiKey   string
	client   *http.Client
	attempts int
}

type remoteRequest struct {
	SourceCode string `json:"sourceCode"`
	Language   string `json:"language"`
	Stdin      string `json:"stdin"`
}

type remoteResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Time   string `json:"time"`
}

func NewRemoteBackend(url, apiKey string, timeout time.Duration) *RemoteBackend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteBackend{
		url:      url,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		attempts: 2,
	}
}

// Run submits one case and waits for the verdict.
func (b *RemoteBackend) Run(ctx context.Context, code, language, stdin string) (RunResult, error) {
	payload, err := json.Marshal(remoteRequest{
		SourceCode: base64.StdEncoding.EncodeToString([]byte(code)),
		Language:   language,
		Stdin:      base64.StdEncoding.EncodeToString([]byte(stdin)),
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("encode submission: %w", err)
	}

	var out remoteResponse
	err = retry.Do(ctx, b.attempts, retry.Exponential(500*time.Millisecond), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if b.apiKey != "" {
			req.Header.Set("X-Auth-Token", b.apiKey)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSandboxUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", ErrSandboxUnavailable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("sandbox rejected submission: status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return RunResult{}, err
	}

	stdout, err := base64.StdEncoding.DecodeString(out.Stdout)
	if err != nil {
		// Some deployments return plain text for empty streams.
		stdout = []byte(out.Stdout)
	}
	stderr, err := base64.StdEncoding.DecodeString(out.Stderr)
	if err != nil {
		stderr = []byte(out.Stderr)
	}

	var timeMs int64
	if secs, err := strconv.ParseFloat(out.Time, 64); err == nil {
		timeMs = int64(secs * 1000)
	}

	return RunResult{
		Stdout: string(stdout),
		Stderr: string(stderr),
		TimeMs: timeMs,
	}, nil
}
