package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options steers one load run against a running instance.
type Options struct {
	BaseURL     string
	Profile     string
	Requests    int
	Concurrency int
	Timeout     time.Duration
}

// Report aggregates what came back, bucketed by status class.
type Report struct {
	Total    int
	ByClass  map[string]int
	Failures int
	Duration time.Duration
}

// Run fires Requests calls at the target and tallies status classes. The
// auth profile posts deliberately bad credentials: it exercises the whole
// login path including the limiter without creating state.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if opts.Requests <= 0 {
		opts.Requests = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	profile := normalizeProfile(opts.Profile)
	client := &http.Client{Timeout: opts.Timeout}

	report := &Report{ByClass: make(map[string]int)}
	var mu sync.Mutex
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := 0; i < opts.Requests; i++ {
		seq := i
		g.Go(func() error {
			status, err := fire(ctx, client, opts.BaseURL, profile, seq)
			mu.Lock()
			defer mu.Unlock()
			report.Total++
			if err != nil {
				report.Failures++
				return nil
			}
			report.ByClass[classifyStatusClass(status)]++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

func fire(ctx context.Context, client *http.Client, baseURL, profile string, seq int) (int, error) {
	var req *http.Request
	var err error
	useAuth := profile == "auth" || (profile == "mixed" && seq%2 == 0)
	if useAuth {
		body := fmt.Sprintf(`{"email":"loadgen-%d@example.com","password":"not-a-real-password"}`, seq)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/login", bytes.NewBufferString(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health/live", nil)
	}
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(profile string) string {
	profile = strings.ToLower(strings.TrimSpace(profile))
	switch profile {
	case "auth", "health", "mixed":
		return profile
	default:
		return "mixed"
	}
}
