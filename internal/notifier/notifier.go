package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var ErrNoTarget = errors.New("notifier: no target chat")

// Config controls send throttling.
type Config struct {
	RatePerSec float64
	Burst      int
	History    int
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25
	}
	if c.Burst <= 0 {
		c.Burst = max(int(c.RatePerSec), 1)
	}
	if c.History <= 0 {
		c.History = 50
	}
	return c
}

type HistoryItem struct {
	At     time.Time `json:"at"`
	ChatID int64     `json:"chat_id"`
	Kind   string    `json:"kind"`
	Error  string    `json:"error,omitempty"`
}

// Service sends through a transport.Adapter. It implements reminder.Sink.
type Service struct {
	adapter transport.Adapter
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	groupID int64
	history []HistoryItem
}

var _ reminder.Sink = (*Service)(nil)

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.Apply(cfg)
	return s
}

// Apply swaps throttling settings. In-flight waits keep the old limiter.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	if len(s.history) > cfg.History {
		s.history = append([]HistoryItem(nil), s.history[len(s.history)-cfg.History:]...)
	}
	s.mu.Unlock()
}

// SetGroup sets the chat operator notices go to; 0 disables them.
func (s *Service) SetGroup(chatID int64) {
	s.mu.Lock()
	s.groupID = chatID
	s.mu.Unlock()
}

// Deliver sends n to the owner's private chat, whose id equals the user id.
func (s *Service) Deliver(ctx context.Context, owner reminder.Owner, n reminder.Notice) error {
	chat := int64(owner)
	err := s.send(ctx, chat, n.Text, &transport.SendOptions{DisablePreview: true})
	s.record(chat, "reminder", err)
	if err != nil {
		return fmt.Errorf("deliver to %d: %w", chat, err)
	}
	return nil
}

// Announce posts text to the log group. It is a no-op without one.
func (s *Service) Announce(ctx context.Context, text string) error {
	s.mu.Lock()
	chat := s.groupID
	s.mu.Unlock()
	if chat == 0 {
		return nil
	}
	err := s.send(ctx, chat, text, &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
	s.record(chat, "announce", err)
	return err
}

// SendLog matches logx.SendFunc so the log sink shares the send budget.
func (s *Service) SendLog(ctx context.Context, chatID int64, text string) error {
	return s.send(ctx, chatID, text, &transport.SendOptions{DisablePreview: true})
}

func (s *Service) send(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) error {
	if chatID == 0 {
		return ErrNoTarget
	}
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	_, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt)
	return err
}

func (s *Service) record(chat int64, kind string, err error) {
	item := HistoryItem{At: time.Now(), ChatID: chat, Kind: kind}
	if err != nil {
		item.Error = err.Error()
	}
	s.mu.Lock()
	s.history = append(s.history, item)
	if over := len(s.history) - s.cfg.History; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.mu.Unlock()
}

// History returns recent sends, oldest first.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
