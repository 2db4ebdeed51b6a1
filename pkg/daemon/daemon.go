package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/display"
	"github.com/oledcare/oledcare/pkg/events"
	"github.com/oledcare/oledcare/pkg/refresh"
)

var (
	conf   config.Config
	engine *Engine
	sseHub *events.EventHub
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", getConfig)
	router.GET("/status", getStatus)
	router.PUT("/enabled", setEnabled)
	router.PUT("/interval", setInterval)
	router.PUT("/speed", setSpeed)
	router.PUT("/smart-mode", setSmartMode)
	router.PUT("/schedule", setSchedule)
	router.POST("/trigger", postTrigger)
	router.POST("/cancel", postCancel)
	router.POST("/resume", postResume)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)

	return router
}

// hubListener bridges the engine's typed events onto the SSE hub.
// Progress is throttled to whole-percent changes so sweep-rate ticks do
// not flood subscribers.
type hubListener struct {
	hub *events.EventHub

	mu          sync.Mutex
	lastPercent int
	lastPhase   string
}

func (l *hubListener) OnProgress(progress float64, phase string) {
	percent := int(progress * 100)

	l.mu.Lock()
	if percent == l.lastPercent && phase == l.lastPhase {
		l.mu.Unlock()
		return
	}
	l.lastPercent = percent
	l.lastPhase = phase
	l.mu.Unlock()

	l.hub.Publish(events.RefreshProgress, events.RefreshProgressEvent{
		Progress: percent,
		Phase:    phase,
		Ts:       time.Now().Unix(),
	})
}

func (l *hubListener) OnStatusChange(from, to refresh.Status) {
	l.hub.Publish(events.RefreshStatus, events.RefreshStatusEvent{
		From: string(from),
		To:   string(to),
		Ts:   time.Now().Unix(),
	})
	logrus.WithFields(logrus.Fields{"from": from, "to": to}).Debug("status change")
}

func (l *hubListener) OnError(err *EngineError) {
	l.hub.Publish(events.RefreshError, events.RefreshErrorEvent{
		Kind:    string(err.Kind),
		Message: err.Err.Error(),
		Ts:      time.Now().Unix(),
	})
}

// watchConfigFile reloads the configuration when the file changes on
// disk, so external settings edits are observed without a restart.
func watchConfigFile(configPath string, stopCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors and atomic writers replace the file,
	// which drops a watch installed on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close config watcher")
			}
		}()

		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != configPath {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := conf.Load(); err != nil {
					logrus.WithError(err).Error("failed to reload config after file change")
					continue
				}
				logrus.WithFields(conf.LogrusFields()).Info("config reloaded after file change")
				engine.ConfigChanged()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("config watcher error")
			case <-stopCh:
				return
			}
		}
	}()

	return nil
}

// Run starts the refresh daemon: it loads the configuration, builds the
// engine with its collaborators, serves the control API on a unix
// socket, and blocks until SIGINT/SIGTERM.
func Run(configPath, statePath, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	sseHub = events.NewEventHub()

	var env display.Environment
	dbusEnv, err := display.NewDBusEnvironment()
	if err != nil {
		logrus.WithError(err).Warn("session bus unavailable, smart mode will treat the session as idle")
		env = display.StaticEnvironment{Idle: true}
	} else {
		env = dbusEnv
		defer func() {
			if err := dbusEnv.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close session bus connection")
			}
		}()
	}

	engine = NewEngine(conf, display.LogRenderer{}, env, &hubListener{hub: sseHub}, statePath)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
			engine.ConfigChanged()
		}
	}()

	stopWatch := make(chan struct{})
	if err := watchConfigFile(configPath, stopWatch); err != nil {
		logrus.WithError(err).Warn("config file watching unavailable")
	}

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Listen to system sleep notifications.
	sleepWatcher, err := NewSleepWatcher(engine.HandlePrepareForSleep)
	if err != nil {
		logrus.WithError(err).Warn("system sleep notifications unavailable, interrupted runs resume on next start")
	}

	// Resume-or-schedule: the engine checks the persisted interrupted
	// state once, then installs the interval timer.
	engine.Start()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	// Release SSE subscribers first so Shutdown does not wait on open
	// event streams.
	sseHub.Shutdown()

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	close(stopWatch)

	if sleepWatcher != nil {
		sleepWatcher.Close()
	}

	logrus.Info("stopping refresh engine")
	engine.Close()

	logrus.Info("exiting")
	return nil
}
