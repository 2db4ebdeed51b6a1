package config

import (
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/utils/ptr"
)

// scheduleEntryRe validates "HH:MM" schedule entries. Entries that do
// not match are dropped at load/set time.
var scheduleEntryRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var defaultFileConfig = &RawFileConfig{
	Enabled:         ptr.To(true),
	IntervalMinutes: ptr.To(360),
	Speed:           ptr.To(2),
	SmartMode:       ptr.To(true),
	Schedule:        &[]string{},
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
	if c == nil {
		f.c = defaultFileConfig
	} else {
		f.normalize()
	}

	return f
}

// normalize corrects out-of-range values in the stored struct, so what
// Save writes back to disk never carries values the engine would have
// to re-correct. Runs whenever a whole raw struct enters a File
// (construct, Load); the setters correct their single field themselves.
func (f *File) normalize() {
	if f.c.IntervalMinutes != nil {
		*f.c.IntervalMinutes = clampInterval(*f.c.IntervalMinutes)
	}
	if f.c.Speed != nil {
		*f.c.Speed = clampSpeed(*f.c.Speed)
	}
	if f.c.Schedule != nil {
		*f.c.Schedule = sanitizeSchedule(*f.c.Schedule)
	}
}

type RawFileConfig struct {
	Enabled         *bool     `json:"enabled,omitempty"`
	IntervalMinutes *int      `json:"intervalMinutes,omitempty"`
	Speed           *int      `json:"speed,omitempty"`
	SmartMode       *bool     `json:"smartMode,omitempty"`
	Schedule        *[]string `json:"schedule,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		Enabled:         ptr.To(c.Enabled()),
		IntervalMinutes: ptr.To(c.IntervalMinutes()),
		Speed:           ptr.To(c.Speed()),
		SmartMode:       ptr.To(c.SmartMode()),
		Schedule:        ptr.To(c.Schedule()),
	}

	return rawConfig, nil
}

// clampInterval corrects an out-of-range interval. Validation failures
// are non-fatal; the corrected value is used and a diagnostic logged.
func clampInterval(i int) int {
	if i < MinIntervalMinutes {
		logrus.Debugf("intervalMinutes %d below minimum, clamping to %d", i, MinIntervalMinutes)
		return MinIntervalMinutes
	}
	if i > MaxIntervalMinutes {
		logrus.Debugf("intervalMinutes %d above maximum, clamping to %d", i, MaxIntervalMinutes)
		return MaxIntervalMinutes
	}
	return i
}

func clampSpeed(s int) int {
	if s < MinSpeed {
		logrus.Debugf("speed %d below minimum, clamping to %d", s, MinSpeed)
		return MinSpeed
	}
	if s > MaxSpeed {
		logrus.Debugf("speed %d above maximum, clamping to %d", s, MaxSpeed)
		return MaxSpeed
	}
	return s
}

// sanitizeSchedule drops malformed entries and duplicates, preserving
// order. The schedule is an ordered set of "HH:MM" strings.
func sanitizeSchedule(entries []string) []string {
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if !scheduleEntryRe.MatchString(e) {
			logrus.Debugf("dropping malformed schedule entry %q", e)
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (f *File) Enabled() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Enabled != nil {
		return *f.c.Enabled
	}
	return *defaultFileConfig.Enabled
}

func (f *File) IntervalMinutes() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.IntervalMinutes != nil {
		return *f.c.IntervalMinutes
	}
	return *defaultFileConfig.IntervalMinutes
}

func (f *File) Speed() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Speed != nil {
		return *f.c.Speed
	}
	return *defaultFileConfig.Speed
}

func (f *File) SmartMode() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.SmartMode != nil {
		return *f.c.SmartMode
	}
	return *defaultFileConfig.SmartMode
}

func (f *File) Schedule() []string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Schedule != nil {
		return *f.c.Schedule
	}
	return nil
}

func (f *File) SetEnabled(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Enabled = &b
}

func (f *File) SetIntervalMinutes(i int) {
	if f.c == nil {
		panic("config is nil")
	}

	i = clampInterval(i)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.IntervalMinutes = &i
}

func (f *File) SetSpeed(s int) {
	if f.c == nil {
		panic("config is nil")
	}

	s = clampSpeed(s)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Speed = &s
}

func (f *File) SetSmartMode(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SmartMode = &b
}

func (f *File) SetSchedule(entries []string) {
	if f.c == nil {
		panic("config is nil")
	}

	sanitized := sanitizeSchedule(entries)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Schedule = &sanitized
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf
	f.normalize()

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"enabled":         f.Enabled(),
		"intervalMinutes": f.IntervalMinutes(),
		"speed":           f.Speed(),
		"smartMode":       f.SmartMode(),
		"schedule":        f.Schedule(),
	}
}
