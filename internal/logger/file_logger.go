package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantara-labs/falcon/internal/position"
	"github.com/quantara-labs/falcon/internal/strategy"
)

// Logger is a per-symbol file logger for trading activity.
type Logger struct {
	symbol  string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logPath string
}

// LogLevel labels the kind of log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelSignal  LogLevel = "SIGNAL"
)

// NewLogger creates a file logger for the given symbol under logDir. One
// file per symbol per day.
func NewLogger(logDir, symbol string) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.log", symbol, time.Now().Format("2006-01-02"))
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		symbol:  symbol,
		logFile: file,
		logger:  log.New(file, "", 0),
		logPath: logPath,
	}
	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
TRADING SESSION STARTED
Symbol: %s | Started: %s
================================================================================
`, l.symbol, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted entry with the given level.
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", timestamp, level, message)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// LogError logs an error with context.
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogSignal logs a generated trade signal and what became of it.
func (l *Logger) LogSignal(sig *strategy.TradeSignal, outcome string) {
	l.Log(LogLevelSignal, "%s %s %s entry=%.4f stop=%.4f conf=%.2f (%s) -> %s",
		sig.Strategy, sig.Symbol, sig.Side, sig.Entry, sig.Stop, sig.Confidence, sig.Reason, outcome)
}

// LogEntry logs a position open.
func (l *Logger) LogEntry(pos *position.Position) {
	l.Log(LogLevelTrade, "OPEN %s %s %s size=%.4f entry=%.4f stop=%.4f notional=%.2f",
		pos.Strategy, pos.Symbol, pos.Side, pos.Size, pos.EntryPrice, pos.StopPrice(), pos.Notional)
}

// LogExit logs a closed trade.
func (l *Logger) LogExit(trade *position.Trade) {
	l.Log(LogLevelTrade, "CLOSE %s %s %s reason=%s exit=%.4f pnl=%.2f fees=%.2f held=%s",
		trade.Strategy, trade.Symbol, trade.Side, trade.ExitReason,
		trade.ExitPrice, trade.PnL, trade.Fees, trade.Duration)
}

// Close writes the session footer and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	footer := fmt.Sprintf(`
================================================================================
TRADING SESSION ENDED
Ended: %s
================================================================================
`, time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Print(footer)
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the log file path.
func (l *Logger) GetLogPath() string {
	return l.logPath
}
