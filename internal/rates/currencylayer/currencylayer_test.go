package currencylayer_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricesync/internal/httpx"
	"pricesync/internal/rates"
	"pricesync/internal/rates/currencylayer"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func server(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "k3y", r.URL.Query().Get("access_key"))
		require.Equal(t, "EUR", r.URL.Query().Get("source"))
		require.Equal(t, "USD", r.URL.Query().Get("currencies"))
		switch r.URL.Path {
		case "/historical":
			require.Equal(t, "2024-03-01", r.URL.Query().Get("date"))
		case "/live":
			require.Empty(t, r.URL.Query().Get("date"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHistorical(t *testing.T) {
	t.Parallel()

	// Arrange
	var hits atomic.Int32
	srv := server(t, &hits, `{"success":true,"historical":true,"date":"2024-03-01","source":"EUR","quotes":{"EURUSD":1.08}}`)
	p := currencylayer.NewHistorical(currencylayer.Config{Endpoint: srv.URL, APIKey: "k3y"}, httpx.New(time.Second))

	// Act
	q, err := p.Rate(t.Context(), day)

	// Assert
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.08").Equal(q.Rate))
	require.Equal(t, "currencylayer-historical", q.Source)
	require.Equal(t, int32(1), hits.Load())
}

func TestLive(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := server(t, &hits, `{"success":true,"source":"EUR","quotes":{"EURUSD":1.0912}}`)
	p := currencylayer.NewLive(currencylayer.Config{Endpoint: srv.URL + "/", APIKey: "k3y"}, httpx.New(time.Second))

	q, err := p.Rate(t.Context(), day)

	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.0912").Equal(q.Rate))
	require.Equal(t, "currencylayer-live", p.Name())
	require.Equal(t, day, q.Day)
}

func TestMissingKeyMakesNoRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := server(t, &hits, `{}`)
	hc := httpx.New(time.Second)

	_, err := currencylayer.NewHistorical(currencylayer.Config{Endpoint: srv.URL}, hc).Rate(t.Context(), day)
	require.ErrorIs(t, err, rates.ErrMissingCredential)
	_, err = currencylayer.NewLive(currencylayer.Config{Endpoint: srv.URL}, hc).Rate(t.Context(), day)
	require.ErrorIs(t, err, rates.ErrMissingCredential)

	require.Zero(t, hits.Load())
}

func TestSoftFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		noRate bool
	}{
		{"api error", `{"success":false,"error":{"code":104,"info":"monthly usage limit reached"}}`, false},
		{"no error detail", `{"success":false}`, false},
		{"pair missing", `{"success":true,"quotes":{"EURGBP":0.85}}`, true},
		{"zero rate", `{"success":true,"quotes":{"EURUSD":0}}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := server(t, &hits, tc.body)
			_, err := currencylayer.NewHistorical(currencylayer.Config{Endpoint: srv.URL, APIKey: "k3y"}, httpx.New(time.Second)).Rate(t.Context(), day)
			require.Error(t, err)
			require.Equal(t, tc.noRate, errors.Is(err, rates.ErrNoRate))
		})
	}
}

func TestHTTPErrorKeepsKeyOutOfMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := currencylayer.NewLive(currencylayer.Config{Endpoint: srv.URL, APIKey: "k3y"}, httpx.New(time.Second)).Rate(t.Context(), day)

	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	require.NotContains(t, err.Error(), "k3y")
}
