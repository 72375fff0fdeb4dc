// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"remindbot/internal/transport"
)

type Sent struct {
	To   transport.ChatTarget
	Text string
	Opt  transport.SendOptions
}

type Edited struct {
	Ref  transport.MessageRef
	Text string
	Opt  transport.SendOptions
}

type Answered struct {
	CallbackID string
	Text       string
}

// Recorder records every outgoing call. SendErr, when set for a chat, fails
// sends to that chat.
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	edited   []Edited
	answered []Answered
	menu     []transport.BotCommand
	nextID   int
	ready    chan struct{}
	notify   chan struct{}

	SendErr map[int64]error
}

func New() *Recorder {
	return &Recorder{
		ready:   make(chan struct{}),
		notify:  make(chan struct{}, 1024),
		SendErr: map[int64]error{},
	}
}

var _ transport.Adapter = (*Recorder)(nil)

func (r *Recorder) Start(ctx context.Context, out chan<- transport.Update) error {
	close(r.ready)
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error { return nil }

func (r *Recorder) Ready() <-chan struct{} { return r.ready }

func (r *Recorder) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.poke()
	if err := r.SendErr[to.ChatID]; err != nil {
		return transport.MessageRef{}, err
	}
	r.nextID++
	r.sent = append(r.sent, Sent{To: to, Text: text, Opt: deref(opt)})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: r.nextID}, nil
}

func (r *Recorder) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.poke()
	r.edited = append(r.edited, Edited{Ref: ref, Text: text, Opt: deref(opt)})
	return nil
}

func (r *Recorder) AnswerCallback(ctx context.Context, callbackID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.poke()
	r.answered = append(r.answered, Answered{CallbackID: callbackID, Text: text})
	return nil
}

func (r *Recorder) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	r.mu.Lock()
	r.menu = append([]transport.BotCommand(nil), cmds...)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) poke() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Edited() []Edited {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edited(nil), r.edited...)
}

func (r *Recorder) Answered() []Answered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Answered(nil), r.answered...)
}

func (r *Recorder) Menu() []transport.BotCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.BotCommand(nil), r.menu...)
}

// WaitCalls blocks until at least n outgoing calls were recorded in total.
func (r *Recorder) WaitCalls(n int, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		got := len(r.sent) + len(r.edited) + len(r.answered)
		r.mu.Unlock()
		if got >= n {
			return nil
		}
		select {
		case <-r.notify:
		case <-deadline:
			return errors.New("transporttest: timed out waiting for adapter calls")
		}
	}
}

func deref(opt *transport.SendOptions) transport.SendOptions {
	if opt == nil {
		return transport.SendOptions{}
	}
	return *opt
}
