package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ChinoUkaegbu/exportify/internal/shared"
)

// Outcome classifies a completed request.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAuthExpired
	OutcomeRateLimited
	OutcomeUnclassified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthExpired:
		return "auth_expired"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeUnclassified:
		return "unclassified"
	default:
		return ""
	}
}

// FetchError describes a failed request.
//
// RetryAfter is only set for [OutcomeRateLimited] responses that carried a Retry-After header.
type FetchError struct {
	Outcome    Outcome
	Status     int
	URL        string
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%v: GET %s: %v", e.sentinel(), e.URL, e.Err)
	case e.Outcome == OutcomeRateLimited && e.RetryAfter > 0:
		return fmt.Sprintf("%v: GET %s: status %d (retry after %s)", e.sentinel(), e.URL, e.Status, e.RetryAfter)
	default:
		return fmt.Sprintf("%v: GET %s: status %d", e.sentinel(), e.URL, e.Status)
	}
}

func (e *FetchError) sentinel() error {
	switch e.Outcome {
	case OutcomeAuthExpired:
		return shared.ErrTokenExpired
	case OutcomeRateLimited:
		return shared.ErrRateLimited
	default:
		return shared.ErrAPIRequest
	}
}

// Unwrap exposes the matching shared sentinel and, for transport failures, the cause.
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.sentinel(), e.Err}
	}
	return []error{e.sentinel()}
}

// Fetcher performs authenticated GET requests and decodes JSON responses.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. A nil client defaults to [http.DefaultClient].
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{httpClient: client}
}

// Fetch issues a GET to address with the bearer token and decodes the JSON body into v.
//
// A 304 with an empty body leaves v untouched. Any non-success status returns a [*FetchError].
func (f *Fetcher) Fetch(ctx context.Context, address, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &FetchError{Outcome: OutcomeUnclassified, URL: address, Err: err}
	}
	defer resp.Body.Close()

	outcome := Classify(resp.StatusCode)
	if outcome != OutcomeOK {
		io.Copy(io.Discard, resp.Body)
		fe := &FetchError{Outcome: outcome, Status: resp.StatusCode, URL: address}
		if outcome == OutcomeRateLimited {
			fe.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
		}
		return fe
	}

	if v == nil {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Outcome: OutcomeUnclassified, Status: resp.StatusCode, URL: address, Err: err}
	}
	if len(body) == 0 && resp.StatusCode == http.StatusNotModified {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &FetchError{
			Outcome: OutcomeUnclassified,
			Status:  resp.StatusCode,
			URL:     address,
			Err:     fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

// Classify maps an HTTP status code to an [Outcome].
func Classify(status int) Outcome {
	switch status {
	case http.StatusOK, http.StatusNotModified:
		return OutcomeOK
	case http.StatusUnauthorized:
		return OutcomeAuthExpired
	case http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeUnclassified
	}
}

// OutcomeOf reports the [Outcome] carried by err, or [OutcomeOK] for nil.
//
// Errors that are not a [*FetchError] are classified by their sentinel.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Outcome
	}

	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return OutcomeAuthExpired
	case errors.Is(err, shared.ErrRateLimited):
		return OutcomeRateLimited
	default:
		return OutcomeUnclassified
	}
}

// retryAfter parses a Retry-After header holding delay-seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
