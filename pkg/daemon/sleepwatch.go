package daemon

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	login1Interface       = "org.freedesktop.login1.Manager"
	login1Path            = "/org/freedesktop/login1"
	prepareForSleepSignal = login1Interface + ".PrepareForSleep"
)

// SleepWatcher subscribes to logind's PrepareForSleep signal on the
// system bus and forwards it to the engine: true right before suspend,
// false after wake.
type SleepWatcher struct {
	conn      *dbus.Conn
	signals   chan *dbus.Signal
	onPrepare func(aboutToSleep bool)
	closeOnce sync.Once
}

func NewSleepWatcher(onPrepare func(aboutToSleep bool)) (*SleepWatcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(login1Interface),
		dbus.WithMatchMember("PrepareForSleep"),
		dbus.WithMatchObjectPath(login1Path),
	); err != nil {
		_ = conn.Close()
		return nil, err
	}

	w := &SleepWatcher{
		conn:      conn,
		signals:   make(chan *dbus.Signal, 8),
		onPrepare: onPrepare,
	}
	conn.Signal(w.signals)
	go w.loop()

	logrus.Info("listening for system sleep notifications")
	return w, nil
}

func (w *SleepWatcher) loop() {
	for sig := range w.signals {
		if sig.Name != prepareForSleepSignal || len(sig.Body) != 1 {
			continue
		}
		aboutToSleep, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		logrus.WithField("aboutToSleep", aboutToSleep).Debug("received PrepareForSleep")
		w.onPrepare(aboutToSleep)
	}
}

// Close unsubscribes and closes the bus connection. Safe to call
// multiple times; the signal loop exits when the connection closes.
func (w *SleepWatcher) Close() {
	w.closeOnce.Do(func() {
		// Closing the connection also closes the signal channel, which
		// ends the loop goroutine.
		if err := w.conn.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close system bus connection")
		}
		logrus.Info("stopped listening for system sleep notifications")
	})
}
