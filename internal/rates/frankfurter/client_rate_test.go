package frankfurter_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricesync/internal/rates"
	"pricesync/internal/rates/frankfurter"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}, nil
	}
}

func TestRate(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/2024-03-01", req.URL.Path)
			require.Equal(t, "EUR", req.URL.Query().Get("from"))
			require.Equal(t, "USD", req.URL.Query().Get("to"))
			require.Equal(t, "pricesync/1.0", req.Header.Get("User-Agent"))
			return respond(http.StatusOK, `{"amount":1.0,"base":"EUR","date":"2024-03-01","rates":{"USD":1.0812}}`)(req)
		}).
		Times(1)

	// Arrange: setup a new client
	client := frankfurter.New(
		frankfurter.WithHTTPClient(httpClient),
		frankfurter.WithBaseURL("https://fx.example"),
		frankfurter.WithHeader(http.Header{"User-Agent": []string{"pricesync/1.0"}}),
	)

	// Act
	q, err := client.Rate(t.Context(), day)

	// Assert
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.0812").Equal(q.Rate))
	require.Equal(t, "frankfurter", q.Source)
	require.Equal(t, day, q.Day)
	require.Equal(t, "EUR", q.Base)
	require.Equal(t, "USD", q.Counter)
}

func TestRate_WeekendUsesPublishedDate(t *testing.T) {
	t.Parallel()

	// Arrange: the API answers a Saturday with Friday's rate
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(respond(http.StatusOK, `{"amount":1.0,"base":"EUR","date":"2024-03-01","rates":{"USD":1.0812}}`)).
		Times(1)
	saturday := day.AddDate(0, 0, 1)

	// Act
	q, err := frankfurter.New(frankfurter.WithHTTPClient(httpClient)).Rate(t.Context(), saturday)

	// Assert
	require.NoError(t, err)
	require.Equal(t, day, q.Day)
}

func TestRate_MissingCounterCurrency(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(respond(http.StatusOK, `{"amount":1.0,"base":"EUR","date":"2024-03-01","rates":{"GBP":0.85}}`)).
		Times(1)

	_, err := frankfurter.New(frankfurter.WithHTTPClient(httpClient)).Rate(t.Context(), day)
	require.ErrorIs(t, err, rates.ErrNoRate)
}

func TestRate_StatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		noRate bool
	}{
		{"not found", http.StatusNotFound, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(respond(tc.status, `{"message":"nope"}`)).Times(1)

			_, err := frankfurter.New(frankfurter.WithHTTPClient(httpClient)).Rate(t.Context(), day)
			require.Error(t, err)
			require.Equal(t, tc.noRate, errors.Is(err, rates.ErrNoRate))
		})
	}
}

func TestRate_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, errors.New("dial tcp: i/o timeout")).
		Times(1)

	_, err := frankfurter.New(frankfurter.WithHTTPClient(httpClient)).Rate(t.Context(), day)
	require.ErrorContains(t, err, "performing request")
}

func TestRate_ErrCreatingRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Times(0)

	client := frankfurter.New(frankfurter.WithHTTPClient(httpClient), frankfurter.WithBaseURL(string([]rune{0x7f})))
	_, err := client.Rate(t.Context(), day)
	require.ErrorContains(t, err, "creating request")
}

func TestRate_CustomPairAndName(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "CHF", req.URL.Query().Get("to"))
			return respond(http.StatusOK, `{"rates":{"CHF":0.9551}}`)(req)
		}).
		Times(1)

	client := frankfurter.New(
		frankfurter.WithHTTPClient(httpClient),
		frankfurter.WithPair(rates.Pair{Base: "EUR", Counter: "CHF"}),
		frankfurter.WithName("ecb"),
	)
	q, err := client.Rate(t.Context(), day)
	require.NoError(t, err)
	require.Equal(t, "ecb", client.Name())
	require.Equal(t, "ecb", q.Source)
	require.Equal(t, "CHF", q.Counter)
}
