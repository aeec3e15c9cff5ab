package sharekhan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manish3089/Token-Generator/internal/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	logins      int32
	historicals int32
	logouts     int32

	loginStatus  string
	logoutStatus int
	rows         string
}

func (b *fakeBroker) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/services/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logins, 1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "4036182", body["userId"])
		assert.Equal(t, "api-key", body["apiKey"])
		assert.Equal(t, "secret-key", body["secretKey"])

		if b.loginStatus != "success" {
			w.Write([]byte(`{"status":"error","message":"bad credentials"}`))
			return
		}
		w.Write([]byte(`{"status":"success","data":{"authToken":"bearer-123"}}`))
	})

	mux.HandleFunc("/services/historical/MCX/GOLDM/5H", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.historicals, 1)
		assert.Equal(t, "Bearer bearer-123", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("fromDate"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("toDate"))
		w.Write([]byte(`{"status":"success","data":` + b.rows + `}`))
	})

	mux.HandleFunc("/services/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logouts, 1)
		assert.Equal(t, "Bearer bearer-123", r.Header.Get("Authorization"))
		w.WriteHeader(b.logoutStatus)
	})

	return mux
}

func TestHistoricalFlow(t *testing.T) {
	broker := &fakeBroker{
		loginStatus:  "success",
		logoutStatus: http.StatusOK,
		rows: `[
			{"timestamp":"2024-03-01 14:00:00","open":62000,"high":62100,"low":61900,"ltp":62050,"vol":120},
			{"timestamp":"2024-03-01 09:00:00","open":61800,"high":62000,"low":61750,"close":61990,"volume":80}
		]`,
	}
	srv := httptest.NewServer(broker.handler(t))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	sess, err := client.Login(ctx)
	require.NoError(t, err)
	require.True(t, sess.Valid())
	assert.Equal(t, "4036182", sess.UserID())

	rows, err := client.FetchHistoricalBars(ctx, sess, HistoricalRequest{
		Exchange: "MCX", Symbol: "GOLDM", Interval: "5H",
		From: "2024-02-01", To: "2024-03-01",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, isNumber := rows[0]["open"].(json.Number)
	assert.True(t, isNumber, "numbers are decoded as json.Number")

	res := timeseries.Normalize(rows)
	require.Len(t, res.Bars, 2)
	assert.Equal(t, "62050", res.Bars[1].Close.Decimal.String())

	client.Logout(ctx, sess)
	assert.False(t, sess.Valid())
	assert.Equal(t, int32(1), atomic.LoadInt32(&broker.logouts))

	_, err = client.FetchHistoricalBars(ctx, sess, HistoricalRequest{Exchange: "MCX", Symbol: "GOLDM", Interval: "5H"})
	assert.ErrorIs(t, err, ErrSequence)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broker.historicals))
}

func TestFetchHistoricalBars_WithoutLoginSendsNothing(t *testing.T) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker.handler(t))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	rows, err := client.FetchHistoricalBars(context.Background(), nil, HistoricalRequest{Exchange: "MCX", Symbol: "GOLDM", Interval: "5H"})
	assert.ErrorIs(t, err, ErrSequence)
	assert.Nil(t, rows)
	assert.Zero(t, atomic.LoadInt32(&broker.historicals))
}

func TestLogin_Failure(t *testing.T) {
	broker := &fakeBroker{loginStatus: "error"}
	srv := httptest.NewServer(broker.handler(t))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)

	sess, err := client.Login(context.Background())
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestFetchHistoricalBars_BrokerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/auth/login" {
			w.Write([]byte(`{"status":"success","data":{"authToken":"t"}}`))
			return
		}
		w.Write([]byte(`{"status":"error","message":"symbol not found"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	sess, err := client.Login(ctx)
	require.NoError(t, err)

	_, err = client.FetchHistoricalBars(ctx, sess, HistoricalRequest{Exchange: "MCX", Symbol: "NOPE", Interval: "5H"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}

func TestLogout_FailureIsSwallowed(t *testing.T) {
	broker := &fakeBroker{loginStatus: "success", logoutStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(broker.handler(t))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	sess, err := client.Login(ctx)
	require.NoError(t, err)

	assert.NotPanics(t, func() { client.Logout(ctx, sess) })
	assert.False(t, sess.Valid())

	// A second logout on a closed session is a no-op
	client.Logout(ctx, sess)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broker.logouts))

	client.Logout(ctx, nil)
}

func TestHistoricalRequest_DateRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	from, to := HistoricalRequest{Days: 45}.DateRange(now)
	assert.Equal(t, "2024-01-30", from)
	assert.Equal(t, "2024-03-15", to)

	from, to = HistoricalRequest{}.DateRange(now)
	assert.Equal(t, "2024-02-14", from)
	assert.Equal(t, "2024-03-15", to)

	from, to = HistoricalRequest{From: "2024-01-01", To: "2024-01-31", Days: 5}.DateRange(now)
	assert.Equal(t, "2024-01-01", from)
	assert.Equal(t, "2024-01-31", to)
}

func TestScripCodes(t *testing.T) {
	codes := ScripCodes()
	assert.Equal(t, "GOLDM", codes["GOLDM_CURRENT"])
	assert.Equal(t, "GOLDM1", codes["GOLDM_NEXT"])
	assert.Equal(t, "GOLDM2", codes["GOLDM_FAR"])
}
