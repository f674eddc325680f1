// Package googlefit turns the Google Fit aggregate API into a steps/calories
// reading for "today so far".
//
// Each call to Aggregator.Today exchanges the refresh token, asks for one
// bucket spanning local midnight to now (with the basal-rate source when the
// account has it) and reduces the answer. Nothing is shared between calls.
package googlefit

import (
	"context"
	"log"
	"net/http"
	"time"
)

type accessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type aggregateFetcher interface {
	Fetch(ctx context.Context, accessToken string, req AggregateRequest) ([]byte, error)
}

// Options configures New. Location defaults to time.Local.
type Options struct {
	Credentials  Credentials
	TokenURL     string
	AggregateURL string
	Location     *time.Location
	HTTPClient   *http.Client
}

type Aggregator struct {
	tokens  accessTokenSource
	fetcher aggregateFetcher
	loc     *time.Location
	now     func() time.Time
}

// New wires a token provider and fetcher. It fails with ErrConfiguration when
// any credential is missing.
func New(opts Options) (*Aggregator, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tokens, err := NewTokenProvider(opts.Credentials, opts.TokenURL, httpClient)
	if err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		tokens:  tokens,
		fetcher: NewFetcher(opts.AggregateURL, httpClient),
		loc:     loc,
		now:     time.Now,
	}, nil
}

// Reading is a Metrics value together with the window it was computed over.
type Reading struct {
	Metrics
	Window Window
}

// Today returns steps and calories from local midnight until now.
func (a *Aggregator) Today(ctx context.Context) (Metrics, error) {
	r, err := a.Read(ctx)
	return r.Metrics, err
}

// Read is Today plus the window it covered, so callers that store the
// reading key it by the same day the provider was asked about.
//
// The first attempt includes the basal source. If the provider rejects that
// source specifically, the request is repeated once without it and
// CaloriesBmr is reported as zero. Any other failure, or a failure of the
// second attempt, is returned as is.
func (a *Aggregator) Read(ctx context.Context) (Reading, error) {
	token, err := a.tokens.AccessToken(ctx)
	if err != nil {
		return Reading{}, err
	}

	w := TodayWindow(a.now(), a.loc)

	withBasal := true
	raw, err := a.fetcher.Fetch(ctx, token, BuildAggregateRequest(w, withBasal))
	if err != nil {
		if !IsBasalSourceUnavailable(err) {
			return Reading{}, err
		}
		log.Printf("[googlefit] basal source rejected, retrying without it: %v", err)
		withBasal = false
		raw, err = a.fetcher.Fetch(ctx, token, BuildAggregateRequest(w, withBasal))
		if err != nil {
			return Reading{}, err
		}
	}

	totals := Reduce(raw)
	if !withBasal {
		totals.CaloriesBmr = 0
	}
	return Reading{Metrics: Normalize(totals, w), Window: w}, nil
}
