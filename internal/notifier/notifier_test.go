package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantamental/internal/model"
	"quantamental/internal/pipeline"
	"quantamental/internal/recorder"
)

func testNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.BaseURL = url
	n.RetryInterval = time.Millisecond
	return n
}

func TestSendWithRetry_RecoversAfterFailure(t *testing.T) {
	var calls atomic.Int32
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	require.NoError(t, n.SendWithRetry(context.Background(), "hello", 3))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).SendWithRetry(context.Background(), "hello", 2)
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetry_DisabledIsNoop(t *testing.T) {
	n := NewTelegramNotifier("", "", "")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.SendWithRetry(context.Background(), "hello", 3))
}

func TestStartPolling_HandlesCommandsFromConfiguredChat(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		polled  atomic.Int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polled.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":" /status ","chat":{"id":42}}},
					{"update_id":8,"message":{"text":"/refresh","chat":{"id":99}}}
				]}`))
				return
			}
			assert.Equal(t, "9", r.URL.Query().Get("offset"))
			cancel()
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			mu.Lock()
			replies = append(replies, payload["text"])
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	var handled []string
	done := make(chan struct{})
	go func() {
		testNotifier(srv.URL).StartPolling(ctx, func(cmd string) string {
			handled = append(handled, cmd)
			return "reply to " + cmd
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"/status"}, handled)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"reply to /status"}, replies)
}

func TestFormatRefreshReport(t *testing.T) {
	start := time.Date(2024, 6, 3, 22, 30, 0, 0, time.UTC)
	rep := &pipeline.Report{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Requested:  3,
		Succeeded:  []string{"AAPL", "MSFT"},
		Failed:     map[string]error{"B&B": errors.New("no data <empty>")},
		Rows:       500,
	}
	msg := FormatRefreshReport(rep)
	assert.Contains(t, msg, "⚠️")
	assert.Contains(t, msg, "Tickers: 2/3")
	assert.Contains(t, msg, "B&amp;B: no data &lt;empty&gt;")
	assert.Contains(t, msg, "Took: 1m30s")
}

func TestFormatStatus(t *testing.T) {
	msg := FormatStatus(&recorder.FetchRun{
		StartedAt: time.Date(2024, 6, 3, 22, 30, 0, 0, time.UTC),
		Requested: 2, Succeeded: 1, FailedTickers: []string{"BAD"}, Rows: 10,
		Status: recorder.StatusPartial,
	})
	assert.Contains(t, msg, "Status: partial")
	assert.Contains(t, msg, "Failed: BAD")
}

func TestFormatFeatureSnapshot(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	series := model.PriceSeries{Ticker: "AAPL", Bars: []model.PriceBar{
		{Date: d1, High: 110, Low: 90, Close: 100},
		{Date: d2, High: 105, Low: 95, Close: 100},
	}}
	ft := model.NewFeatureTable("AAPL", []time.Time{d1, d2})
	require.NoError(t, ft.Add("return_1d", []null.Float{{}, null.FloatFrom(0)}))
	require.NoError(t, ft.Add("sma_5", []null.Float{{}, {}}))

	msg := FormatFeatureSnapshot(series, ft)
	assert.Contains(t, msg, "2024-01-03")
	assert.Contains(t, msg, "52w range: 90.00 - 110.00 (50%)")
	assert.Contains(t, msg, "return_1d: 0.0000")
	assert.Contains(t, msg, "sma_5: n/a")

	empty := FormatFeatureSnapshot(model.PriceSeries{Ticker: "X"}, model.NewFeatureTable("X", nil))
	assert.Contains(t, empty, "No data")
}
