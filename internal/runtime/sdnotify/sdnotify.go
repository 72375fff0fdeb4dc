// Package sdnotify speaks the systemd notify protocol. Every call is a
// no-op when the process was not started by systemd with NOTIFY_SOCKET.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindbot/pkg/logx"
)

type Notifier struct {
	enabled bool
	log     logx.Logger
}

func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{enabled: enabled, log: log.With(logx.String("comp", "systemd"))}
}

func (n *Notifier) Ready() bool    { return n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() bool { return n.send(daemon.SdNotifyStopping) }
func (n *Notifier) Reloading() bool {
	return n.send(daemon.SdNotifyReloading)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(s string) bool { return n.send("STATUS=" + s) }

func (n *Notifier) send(state string) bool {
	if !n.enabled {
		return false
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
	return sent
}

// Watchdog pings at half the WATCHDOG_USEC interval until ctx is done.
// It returns at once when the watchdog is not configured.
func (n *Notifier) Watchdog(ctx context.Context) error {
	if !n.enabled {
		return nil
	}
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil || every <= 0 {
		return err
	}
	every /= 2
	n.log.Info("watchdog enabled", logx.Duration("every", every))
	for {
		t := time.NewTimer(every)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
