package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/refresh"
)

type statusData struct {
	report *refresh.Report
	config *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	report, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		report: report,
		config: conf,
	}, nil
}

type statusJSON struct {
	Refresh       statusRefreshJSON `json:"refresh"`
	Configuration statusConfigJSON  `json:"configuration"`
}

type statusRefreshJSON struct {
	Status               string     `json:"status"`
	Running              bool       `json:"running"`
	ProgressPercent      int        `json:"progressPercent"`
	Phase                string     `json:"phase,omitempty"`
	TimeRemainingSeconds int        `json:"timeRemainingSeconds"`
	NextRun              *time.Time `json:"nextRun,omitempty"`
}

type statusConfigJSON struct {
	Enabled         bool     `json:"enabled"`
	IntervalMinutes int      `json:"intervalMinutes"`
	Speed           int      `json:"speed"`
	SmartMode       bool     `json:"smartMode"`
	Schedule        []string `json:"schedule"`
}

func NewStatusCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of oledcare",
		Long:    `Get refresh status, the next scheduled run, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")
			r := data.report

			if jsonOutput {
				out := statusJSON{
					Refresh: statusRefreshJSON{
						Status:               string(r.Status),
						Running:              r.Running,
						ProgressPercent:      r.Progress,
						Phase:                r.Phase,
						TimeRemainingSeconds: r.TimeRemaining,
					},
					Configuration: statusConfigJSON{
						Enabled:         conf.Enabled(),
						IntervalMinutes: conf.IntervalMinutes(),
						Speed:           conf.Speed(),
						SmartMode:       conf.SmartMode(),
						Schedule:        conf.Schedule(),
					},
				}
				if !r.NextRun.IsZero() {
					out.Refresh.NextRun = &r.NextRun
				}

				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal status: %w", err)
				}
				cmd.Println(string(b))
				return nil
			}

			// Refresh status.
			cmd.Println(bold("Refresh status:"))
			cmd.Printf("  State: %s\n", statusText(r.Status))
			if r.Running {
				cmd.Printf("  Progress: %s\n", bold("%d%%", r.Progress))
				cmd.Printf("  Phase: %s\n", bold("%s", r.Phase))
				cmd.Printf("  Time remaining: %s\n", bold("%s", (time.Duration(r.TimeRemaining)*time.Second).String()))
			}
			if !r.NextRun.IsZero() {
				cmd.Printf("  Next scheduled run: %s\n", bold("%s", r.NextRun.Local().Format(time.RFC1123)))
			}

			cmd.Println()

			// Config.
			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Enabled: %s\n", bool2Text(conf.Enabled()))
			cmd.Printf("  Interval: %s\n", bold("%d minutes", conf.IntervalMinutes()))
			cmd.Printf("  Speed: %s\n", bold("%d (%s per run)", conf.Speed(), refresh.DurationForSpeed(conf.Speed())))
			cmd.Printf("  Smart mode: %s\n", bool2Text(conf.SmartMode()))
			if sched := conf.Schedule(); len(sched) > 0 {
				cmd.Printf("  Schedule windows: %s\n", bold("%s", strings.Join(sched, ", ")))
			} else {
				cmd.Printf("  Schedule windows: %s\n", bold("any time"))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func statusText(s refresh.Status) string {
	switch s {
	case refresh.StatusRunning:
		return color.New(color.Bold, color.FgGreen).Sprint("running")
	case refresh.StatusInterrupted:
		return color.New(color.Bold, color.FgYellow).Sprint("interrupted")
	case refresh.StatusError:
		return color.New(color.Bold, color.FgRed).Sprint("error")
	case refresh.StatusDisabled:
		return color.New(color.Bold).Sprint("disabled")
	default:
		return bold("%s", string(s))
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
