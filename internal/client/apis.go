package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/refresh"
)

func (c *Client) SetEnabled(enabled bool) (string, error) {
	return c.Put("/enabled", strconv.FormatBool(enabled))
}

func (c *Client) SetInterval(minutes int) (string, error) {
	return c.Put("/interval", strconv.Itoa(minutes))
}

func (c *Client) SetSpeed(speed int) (string, error) {
	return c.Put("/speed", strconv.Itoa(speed))
}

func (c *Client) SetSmartMode(enabled bool) (string, error) {
	return c.Put("/smart-mode", strconv.FormatBool(enabled))
}

func (c *Client) SetSchedule(entries []string) (string, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return c.Put("/schedule", string(payload))
}

func (c *Client) Trigger() (string, error) {
	return c.Post("/trigger", "")
}

// CancelRefresh stops the active run. With save, the daemon persists the
// interruption point so a later resume picks the run back up.
func (c *Client) CancelRefresh(save bool) (string, error) {
	return c.Post("/cancel", strconv.FormatBool(save))
}

func (c *Client) Resume() (string, error) {
	return c.Post("/resume", "")
}

func (c *Client) GetStatus() (*refresh.Report, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}

	var r refresh.Report
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal status")
	}
	return &r, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}
	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	// The daemon returns a JSON string; strip the surrounding quotes
	// instead of running a decoder over four bytes.
	if len(ret) >= 2 && ret[0] == '"' && ret[len(ret)-1] == '"' {
		ret = ret[1 : len(ret)-1]
	}
	return ret, nil
}
