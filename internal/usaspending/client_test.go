package usaspending

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := &Client{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Limiter:    NewSlidingWindow(100, time.Second),
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Logger:     log.New(testWriter{t}, "[TEST] ", 0),
		sleep:      func(context.Context, time.Duration) error { return nil },
	}
	return c
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"results":[],"page_metadata":{"page":1,"has_next_page":false}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	resp, err := c.SearchAwards(context.Background(), SearchRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.False(t, resp.PageMetadata.HasNextPage)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRequestValidationErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"end_date cannot be in the future"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.SearchAwards(context.Background(), SearchRequest{Page: 1, Limit: 10})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "want *ValidationError, got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, verr.StatusCode)
	assert.Contains(t, verr.ResponseBody, "end_date")
	assert.Contains(t, verr.RequestBody, "filters")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "validation errors must not be retried")
}

func TestRequestExhaustedRetriesIsTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.SearchAwards(context.Background(), SearchRequest{Page: 1, Limit: 10})
	var terr *TransientError
	require.True(t, errors.As(err, &terr), "want *TransientError, got %v", err)
	assert.Equal(t, 3, terr.Attempts)
	assert.Equal(t, http.StatusBadGateway, terr.LastStatus)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "transient error must be distinguishable from validation error")
}

func TestGetAwardDecodesDetailShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/awards/CONT_AWD_123/", r.URL.Path)
		w.Write([]byte(`{"generated_unique_award_id":"CONT_AWD_123","total_obligation":150000.5,"description":"cyber support"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	raw, err := c.GetAward(context.Background(), "CONT_AWD_123")
	require.NoError(t, err)
	assert.Equal(t, KindDetail, raw.Kind)
	assert.Equal(t, "CONT_AWD_123", raw.Str("generated_unique_award_id"))
	assert.Equal(t, 150000.5, raw.Num("total_obligation"))
}

func TestMetricsLabelDetailRequestsByEndpointName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_obligation":1,"id":1}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	c.Metrics = NewMetrics(prometheus.NewRegistry())

	for _, id := range []string{"CONT_AWD_1", "CONT_AWD_2", "CONT_AWD_3"} {
		_, err := c.GetAward(context.Background(), id)
		require.NoError(t, err)
	}

	// Distinct award ids must collapse onto one label value, not one series
	// per award.
	assert.Equal(t, float64(3), testutil.ToFloat64(c.Metrics.Requests.WithLabelValues(endpointAwardDetail)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Metrics.Requests))
}

func TestDecodeRawAwardShapes(t *testing.T) {
	search, err := DecodeRawAward([]byte(`{"Award ID":"FA8771-20-C-0001","generated_internal_id":"CONT_AWD_1","Award Amount":10}`))
	require.NoError(t, err)
	assert.Equal(t, KindSearchRow, search.Kind)

	detail, err := DecodeRawAward([]byte(`{"total_obligation":5,"id":991}`))
	require.NoError(t, err)
	assert.Equal(t, KindDetail, detail.Kind)
	assert.Equal(t, "991", detail.Str("id"), "integer ids coerce to strings")

	other, err := DecodeRawAward([]byte(`{"something":"else"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnrecognized, other.Kind)
}
