package main

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"i4.energy/across/atbridge/bridge"
)

// notifier reports bridge state to systemd. Outside a Type=notify unit
// every call is a no-op.
type notifier struct {
	logger *slog.Logger
	ready  bool
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{logger: logger}
}

// StateChanged is the supervisor's state hook. READY=1 is sent the first
// time the bridge comes up; every transition updates STATUS.
func (n *notifier) StateChanged(state bridge.State) {
	msg := "STATUS=" + state.String()
	if state == bridge.Bridging && !n.ready {
		msg = daemon.SdNotifyReady + "\n" + msg
		n.ready = true
	}
	n.send(msg)
}

// Stopping tells systemd the bridge is shutting down.
func (n *notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

func (n *notifier) send(msg string) {
	sent, err := daemon.SdNotify(false, msg)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "error", err)
		return
	}
	if sent {
		n.logger.Debug("Notified systemd", "state", msg)
	}
}
