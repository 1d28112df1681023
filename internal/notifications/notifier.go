package notifications

import (
	"fmt"
	"os"
	"time"

	"github.com/quantara-labs/falcon/internal/position"
)

// Notifier pushes trade events to an external channel.
type Notifier interface {
	NotifyEntry(pos *position.Position) error
	NotifyExit(trade *position.Trade) error
	SendAlert(level, message string) error
}

// FromEnv builds the configured notifier, or nil when none is set up.
// Telegram is enabled by TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID.
func FromEnv() Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatID == "" {
		return nil
	}
	return NewTelegramNotifier(token, chatID)
}

func entryMessage(pos *position.Position) string {
	return fmt.Sprintf("Opened %s %s %s\nSize: %.4f @ %.4f\nStop: %.4f",
		pos.Strategy, pos.Side, pos.Symbol, pos.Size, pos.EntryPrice, pos.StopPrice())
}

func exitMessage(trade *position.Trade) string {
	return fmt.Sprintf("Closed %s %s %s (%s)\nPnL: %.2f after %s\nExit: %.4f, TP hits: %d",
		trade.Strategy, trade.Side, trade.Symbol, trade.ExitReason,
		trade.PnL-trade.Fees, trade.Duration.Round(time.Second), trade.ExitPrice, trade.TPHits)
}
