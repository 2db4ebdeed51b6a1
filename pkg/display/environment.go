package display

import (
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// Environment reports the conditions smart mode gates on. The engine
// never detects idleness or foreground activity itself; it queries this
// collaborator.
type Environment interface {
	IsIdle() bool
	HasFullscreenCriticalApp() bool
}

// idleThreshold is how long the session must have been idle before a
// smart-mode refresh is allowed to start.
const idleThreshold = 2 * time.Minute

// DBusEnvironment queries the desktop session over D-Bus. Idle time
// comes from org.freedesktop.ScreenSaver. Fullscreen detection has no
// portable D-Bus surface, so it conservatively reports false; hosts
// with a compositor-specific probe can wrap this type.
type DBusEnvironment struct {
	conn *dbus.Conn
}

var _ Environment = &DBusEnvironment{}

// NewDBusEnvironment connects to the session bus. A connection failure
// is non-fatal for the caller: smart mode then treats the session as
// idle (refreshes are not blocked forever on a headless host).
func NewDBusEnvironment() (*DBusEnvironment, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &DBusEnvironment{conn: conn}, nil
}

func (e *DBusEnvironment) IsIdle() bool {
	obj := e.conn.Object("org.freedesktop.ScreenSaver", "/org/freedesktop/ScreenSaver")
	// GetSessionIdleTime reports whole seconds, not milliseconds.
	var idleSecs uint32
	if err := obj.Call("org.freedesktop.ScreenSaver.GetSessionIdleTime", 0).Store(&idleSecs); err != nil {
		logrus.WithError(err).Debug("screensaver idle query failed, assuming idle")
		return true
	}
	return idleLongEnough(idleSecs)
}

// idleLongEnough compares the ScreenSaver interface's idle seconds
// against the smart-mode threshold.
func idleLongEnough(idleSecs uint32) bool {
	return time.Duration(idleSecs)*time.Second >= idleThreshold
}

func (e *DBusEnvironment) HasFullscreenCriticalApp() bool {
	return false
}

// Close releases the session bus connection.
func (e *DBusEnvironment) Close() error {
	return e.conn.Close()
}

// StaticEnvironment is a fixed-answer Environment, used when no session
// bus is available and in tests.
type StaticEnvironment struct {
	Idle       bool
	Fullscreen bool
}

var _ Environment = StaticEnvironment{}

func (s StaticEnvironment) IsIdle() bool                   { return s.Idle }
func (s StaticEnvironment) HasFullscreenCriticalApp() bool { return s.Fullscreen }
