package notifications

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/risk"
	"github.com/quantara-labs/falcon/internal/strategy"
)

func testNotifier(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	n := NewTelegramNotifier("test-token", "42")
	n.baseURL = server.URL
	return n
}

func TestSendAlertPostsToChat(t *testing.T) {
	var got url.Values
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		assert.Contains(t, r.URL.Path, "bottest-token/sendMessage")
	})

	require.NoError(t, n.SendAlert("error", "feed halted"))
	assert.Equal(t, "42", got.Get("chat_id"))
	assert.Contains(t, got.Get("text"), "feed halted")
	assert.Contains(t, got.Get("text"), "🚨")
}

func TestSendAlertNonOKStatus(t *testing.T) {
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	assert.Error(t, n.SendAlert("info", "hello"))
}

func TestNotifyExitLevels(t *testing.T) {
	var texts []string
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		texts = append(texts, r.PostForm.Get("text"))
	})

	winner := &position.Trade{
		Symbol: "BTCUSDT", Strategy: "vwap_mr", Side: strategy.SideLong,
		ExitReason: position.ExitTP2, PnL: 15, Fees: 2,
		ExitPrice: 101.5, Duration: time.Hour, TPHits: 2,
	}
	loser := &position.Trade{
		Symbol: "BTCUSDT", Strategy: "trend_pullback", Side: strategy.SideShort,
		ExitReason: position.ExitStopLoss, PnL: -5, Fees: 1,
		ExitPrice: 103, Duration: 30 * time.Minute,
	}

	require.NoError(t, n.NotifyExit(winner))
	require.NoError(t, n.NotifyExit(loser))
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "✅")
	assert.Contains(t, texts[0], "tp2")
	assert.Contains(t, texts[1], "⚠️")
	assert.Contains(t, texts[1], "sl")
}

func TestNotifyEntry(t *testing.T) {
	var text string
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		text = r.PostForm.Get("text")
	})

	sig := &strategy.TradeSignal{
		Strategy: "lsvr", Symbol: "ETHUSDT", Side: strategy.SideShort,
		Entry: 2000, Stop: 2030,
		TPLevels:  []strategy.TPLevel{{Price: 1980, SizeFraction: 1}},
		Timestamp: time.Now().UTC(), TimeStop: time.Hour, SweepLevel: 2025,
	}
	pos := position.Open(sig, risk.Result{Contracts: 2, Passed: true}, 2001, time.Now().UTC())

	require.NoError(t, n.NotifyEntry(pos))
	assert.Contains(t, text, "ETHUSDT")
	assert.Contains(t, text, "SHORT")
	assert.Contains(t, text, "2030")
}

func TestFromEnvDisabledWithoutCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	assert.Nil(t, FromEnv())

	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "7")
	assert.NotNil(t, FromEnv())
}
