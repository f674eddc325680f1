package googlefit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFit serves both the token and the aggregate endpoints and records every
// aggregate request it receives.
type fakeFit struct {
	mu        sync.Mutex
	requests  []AggregateRequest
	tokenHits int

	// respond decides the aggregate answer for the n-th call (0-based).
	respond func(n int, req AggregateRequest) (int, []byte)
	srv     *httptest.Server
}

func newFakeFit(t *testing.T, respond func(n int, req AggregateRequest) (int, []byte)) *fakeFit {
	t.Helper()
	f := &fakeFit{respond: respond}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokenHits++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/aggregate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-123", r.Header.Get("Authorization"))
		var req AggregateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		n := len(f.requests)
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		status, body := f.respond(n, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(body)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFit) aggregator(t *testing.T, now time.Time) *Aggregator {
	t.Helper()
	a, err := New(Options{
		Credentials:  testCreds,
		TokenURL:     f.srv.URL + "/token",
		AggregateURL: f.srv.URL + "/aggregate",
		Location:     time.UTC,
		HTTPClient:   f.srv.Client(),
	})
	require.NoError(t, err)
	a.now = func() time.Time { return now }
	return a
}

const basalRejection = `{"error":{"code":403,"message":"datasource not found or not readable: derived:com.google.calories.bmr:com.google.android.gms:merged","status":"PERMISSION_DENIED"}}`

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestToday_WithBasal(t *testing.T) {
	var raw []byte
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		return http.StatusOK, raw
	})
	raw = payload(t, bucket(
		dataset(stepsSource, intPoint(5000)),
		dataset(activeSource, fpPoint(200)),
		dataset(bmrSource, fpPoint(1600)),
	))

	got, err := fake.aggregator(t, noon).Today(context.Background())
	require.NoError(t, err)
	require.Equal(t, Metrics{Steps: 5000, Calories: 1000, CaloriesActive: 200, CaloriesBmr: 800}, got)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	require.True(t, req.IncludesBasal())
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).UnixMilli(), req.StartTimeMillis)
	require.Equal(t, noon.UnixMilli(), req.EndTimeMillis)
	require.Equal(t, int64(12*60*60*1000), req.BucketByTime.DurationMillis)
}

func TestToday_FallsBackOnceWhenBasalRejected(t *testing.T) {
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		if req.IncludesBasal() {
			return http.StatusForbidden, []byte(basalRejection)
		}
		return http.StatusOK, payload(t, bucket(
			dataset(stepsSource, intPoint(4321)),
			dataset(activeSource, fpPoint(99.6)),
			// Even if the provider sent basal data, the fallback path reports none.
			dataset(bmrSource, fpPoint(1600)),
		))
	})

	got, err := fake.aggregator(t, noon).Today(context.Background())
	require.NoError(t, err)
	require.Equal(t, Metrics{Steps: 4321, Calories: 100, CaloriesActive: 100, CaloriesBmr: 0}, got)

	require.Len(t, fake.requests, 2)
	require.True(t, fake.requests[0].IncludesBasal())
	require.False(t, fake.requests[1].IncludesBasal())
	require.Equal(t, 1, fake.tokenHits, "fallback reuses the access token of the request")
}

func TestToday_SecondFailureIsSurfaced(t *testing.T) {
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		if req.IncludesBasal() {
			return http.StatusForbidden, []byte(basalRejection)
		}
		return http.StatusInternalServerError, []byte(`{"error":{"code":500,"message":"backend error"}}`)
	})

	_, err := fake.aggregator(t, noon).Today(context.Background())
	var aggErr *AggregateError
	require.True(t, errors.As(err, &aggErr))
	require.Equal(t, http.StatusInternalServerError, aggErr.Status)
	require.Equal(t, KindOther, aggErr.Kind)
	require.Len(t, fake.requests, 2, "no retry beyond the single fallback")
}

func TestToday_NoFallbackOnUnrelatedFailure(t *testing.T) {
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		return http.StatusUnauthorized, []byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials."}}`)
	})

	_, err := fake.aggregator(t, noon).Today(context.Background())
	var aggErr *AggregateError
	require.True(t, errors.As(err, &aggErr))
	require.Equal(t, http.StatusUnauthorized, aggErr.Status)
	require.False(t, IsBasalSourceUnavailable(err))
	require.Len(t, fake.requests, 1)
}

func TestToday_TokenRejectedStopsBeforeAggregate(t *testing.T) {
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		return http.StatusOK, []byte(`{}`)
	})
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized_client"}`))
	}))
	defer tokenSrv.Close()

	a, err := New(Options{
		Credentials:  testCreds,
		TokenURL:     tokenSrv.URL,
		AggregateURL: fake.srv.URL + "/aggregate",
		HTTPClient:   tokenSrv.Client(),
	})
	require.NoError(t, err)

	_, err = a.Today(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	require.Empty(t, fake.requests)
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(Options{Credentials: Credentials{ClientID: "cid", ClientSecret: "csec"}})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestClassifyFailure(t *testing.T) {
	w := Window{Start: noon.Add(-time.Hour), End: noon}
	withBasal := BuildAggregateRequest(w, true)
	withoutBasal := BuildAggregateRequest(w, false)

	require.Equal(t, KindBasalSourceUnavailable, classifyFailure(withBasal, []byte(basalRejection)))
	require.Equal(t, KindOther, classifyFailure(withBasal, []byte(`{"error":"quota exceeded"}`)))
	// A request that never named the basal source cannot be blamed on it.
	require.Equal(t, KindOther, classifyFailure(withoutBasal, []byte(basalRejection)))
}

func TestRead_ReportsWindowOfTheRequest(t *testing.T) {
	fake := newFakeFit(t, func(n int, req AggregateRequest) (int, []byte) {
		return http.StatusOK, payload(t, bucket(dataset(stepsSource, intPoint(10))))
	})
	justBeforeMidnight := time.Date(2026, 3, 9, 23, 59, 59, 0, time.UTC)

	got, err := fake.aggregator(t, justBeforeMidnight).Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, got.Steps)
	require.Equal(t, "2026-03-09", got.Window.Day())
	require.Equal(t, justBeforeMidnight, got.Window.End)

	require.Len(t, fake.requests, 1)
	require.Equal(t, got.Window.Start.UnixMilli(), fake.requests[0].StartTimeMillis)
}
