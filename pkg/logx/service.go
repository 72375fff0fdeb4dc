package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig mirrors log events at or above MinLevel into the ops chat.
type TelegramConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

// SendFunc posts a plain-text message to a chat.
type SendFunc func(ctx context.Context, chatID int64, text string) error

const (
	defaultLogPath  = "./remindbot.log"
	chatQueueSize   = 256
	chatMessageMax  = 3500
	chatFieldMax    = 600
	chatSendTimeout = 10 * time.Second
)

// Service owns the live log outputs.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu       sync.Mutex
	file     *os.File
	send     SendFunc
	chatID   int64
	limiter  *rate.Limiter
	minLevel Level
	chatOn   bool

	queue  chan string
	start  sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New applies cfg and returns the service plus a logger bound to it.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{queue: make(chan string, chatQueueSize)}
	boot := zerolog.New(consoleWriter(Stdout())).Level(ParseLevel(cfg.Level, LevelInfo)).With().Timestamp().Logger()
	s.root.Store(&boot)
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// SetTelegramSink wires the ops chat once the transport exists.
func (s *Service) SetTelegramSink(chatID int64, send SendFunc) {
	s.mu.Lock()
	s.chatID = chatID
	s.send = send
	s.mu.Unlock()
}

// Apply rebuilds the writer set. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.minLevel = ParseLevel(cfg.Telegram.MinLevel, LevelWarn)
	rps := cfg.Telegram.RatePerSec
	if rps < 1 {
		rps = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	s.chatOn = cfg.Telegram.Enabled

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(Stdout()))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogPath
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(Stderr(), "logx: open %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if cfg.Telegram.Enabled {
		s.start.Do(s.startChatWorker)
		writers = append(writers, chatWriter{s})
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(Stdout()))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the chat worker and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func (s *Service) startChatWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.queue:
				s.mu.Lock()
				send, chatID := s.send, s.chatID
				s.mu.Unlock()
				if send == nil || chatID == 0 {
					continue
				}
				sctx, scancel := context.WithTimeout(ctx, chatSendTimeout)
				_ = send(sctx, chatID, msg)
				scancel()
			}
		}
	}()
}

type chatWriter struct{ s *Service }

func (w chatWriter) Write(p []byte) (int, error) { return w.WriteLevel(LevelInfo, p) }

func (w chatWriter) WriteLevel(level Level, p []byte) (int, error) {
	s := w.s
	s.mu.Lock()
	ok := s.chatOn && s.send != nil && s.chatID != 0 && level >= s.minLevel && s.limiter.Allow()
	s.mu.Unlock()
	if !ok {
		return len(p), nil
	}
	if msg := formatChatLine(p); msg != "" {
		// Never block the caller; drop when the queue is full.
		select {
		case s.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

// formatChatLine turns one JSON log line into "[LEVEL] msg" plus sorted key=value lines.
func formatChatLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), chatMessageMax)
	}
	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.TimestampFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n- " + k + "=")
		b.WriteString(truncate(fmt.Sprint(m[k]), chatFieldMax))
	}
	return truncate(b.String(), chatMessageMax)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
}

func Stdout() io.Writer { return os.Stdout }
func Stderr() io.Writer { return os.Stderr }
