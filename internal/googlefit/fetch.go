package googlefit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Fetcher posts aggregate requests and hands back the raw provider payload.
type Fetcher struct {
	url        string
	httpClient *http.Client
}

func NewFetcher(url string, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{url: url, httpClient: httpClient}
}

// Fetch returns the response body unmodified. Any non-2xx answer becomes an
// *AggregateError whose Kind is decided here, once, from the error payload.
func (f *Fetcher) Fetch(ctx context.Context, accessToken string, req AggregateRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create aggregate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("aggregate request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read aggregate response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AggregateError{
			Kind:   classifyFailure(req, respBytes),
			Status: resp.StatusCode,
			Body:   string(respBytes),
		}
	}
	return respBytes, nil
}

// classifyFailure blames the basal source only when the request actually named
// it and the provider's error payload points at it.
func classifyFailure(req AggregateRequest, payload []byte) ErrorKind {
	if req.IncludesBasal() && strings.Contains(string(payload), basalMarker) {
		return KindBasalSourceUnavailable
	}
	return KindOther
}
