package daemon

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/refresh"
	"github.com/oledcare/oledcare/pkg/version"
)

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, engine.Report())
}

func setEnabled(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetEnabled(b)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	engine.ConfigChanged()

	logrus.Infof("set enabled to %t", b)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setInterval(c *gin.Context) {
	var i int
	if err := c.BindJSON(&i); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if i < config.MinIntervalMinutes || i > config.MaxIntervalMinutes {
		err := fmt.Errorf("interval must be between %d and %d minutes, got %d",
			config.MinIntervalMinutes, config.MaxIntervalMinutes, i)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetIntervalMinutes(i)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	engine.ConfigChanged()

	logrus.Infof("set refresh interval to %d minutes", i)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("refresh interval set to %d minutes", i))
}

func setSpeed(c *gin.Context) {
	var s int
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if s < config.MinSpeed || s > config.MaxSpeed {
		err := fmt.Errorf("speed must be between %d and %d, got %d", config.MinSpeed, config.MaxSpeed, s)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetSpeed(s)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set refresh speed to %d", s)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("refresh speed set to %d (%s per run)", s, refresh.DurationForSpeed(s)))
}

func setSmartMode(c *gin.Context) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetSmartMode(b)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set smart mode to %t", b)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func setSchedule(c *gin.Context) {
	var entries []string
	if err := c.BindJSON(&entries); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetSchedule(entries)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	engine.ConfigChanged()

	kept := conf.Schedule()
	logrus.Infof("set schedule to %v", kept)

	if len(kept) < len(entries) {
		c.IndentedJSON(http.StatusCreated, fmt.Sprintf("schedule set to %v (%d malformed entries dropped)", kept, len(entries)-len(kept)))
		return
	}
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("schedule set to %v", kept))
}

func postTrigger(c *gin.Context) {
	if err := engine.TriggerManual(); err != nil {
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	}

	logrus.Info("refresh triggered manually")

	c.IndentedJSON(http.StatusCreated, "refresh started")
}

func postCancel(c *gin.Context) {
	var save bool
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&save); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	if err := engine.Cancel(save); err != nil {
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	}

	logrus.Infof("refresh cancelled (save=%t)", save)

	c.IndentedJSON(http.StatusCreated, "refresh cancelled")
}

func postResume(c *gin.Context) {
	if err := engine.Resume(); err != nil {
		c.IndentedJSON(http.StatusConflict, err.Error())
		_ = c.AbortWithError(http.StatusConflict, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, "ok")
}

// getEvents streams engine events over SSE until the client goes away.
func getEvents(c *gin.Context) {
	ch := sseHub.Subscribe()
	defer sseHub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
