package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oledcare/oledcare/pkg/config"
)

func NewIntervalCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "interval [minutes]",
		Short:   "Set the refresh interval",
		GroupID: gBasic,
		Long: fmt.Sprintf(`Set how often a scheduled refresh routine runs, in minutes.

The interval must be between %d (1 hour) and %d (24 hours). The default is 360 (6 hours).`,
			config.MinIntervalMinutes, config.MaxIntervalMinutes),
		RunE: func(_ *cobra.Command, args []string) error {
			minutes, err := parseIntArg(args, "interval")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetInterval(minutes)
			if err != nil {
				return fmt.Errorf("failed to set interval: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set refresh interval to %d minutes", minutes)

			return nil
		},
	}
}

func NewSpeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "speed [1-5]",
		Short:   "Set the refresh speed",
		GroupID: gBasic,
		Long: `Set how fast a refresh routine runs.

1 is the slowest and most thorough (5 minutes per routine), 5 is the fastest (30 seconds per routine). The default is 2.`,
		RunE: func(_ *cobra.Command, args []string) error {
			speed, err := parseIntArg(args, "speed")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetSpeed(speed)
			if err != nil {
				return fmt.Errorf("failed to set speed: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set refresh speed to %d", speed)

			return nil
		},
	}
}

func NewSmartModeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "smart-mode [on|off]",
		Short:   "Enable or disable smart mode",
		GroupID: gAdvanced,
		Long: `Enable or disable smart mode.

With smart mode on, scheduled refreshes only start when the session has been idle for a while and no fullscreen application is in the foreground. Manual triggers always run regardless.`,
		RunE: func(_ *cobra.Command, args []string) error {
			enabled, err := parseOnOffArg(args, "smart mode")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetSmartMode(enabled)
			if err != nil {
				return fmt.Errorf("failed to set smart mode: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set smart mode to %t", enabled)

			return nil
		},
	}
}

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule [HH:MM ...]",
		Short:   "Restrict refreshes to time-of-day windows",
		GroupID: gAdvanced,
		Long: `Restrict scheduled refreshes to windows starting at the given times of day.

Each argument is a 24-hour HH:MM start time; the window extends for one refresh interval from there. For example, with a 60 minute interval, "oledcare schedule 03:00 13:00" allows scheduled refreshes between 03:00-04:00 and 13:00-14:00 only.

With no arguments, the schedule is cleared and refreshes may run at any time of day.`,
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := apiClient.SetSchedule(args)
			if err != nil {
				return fmt.Errorf("failed to set schedule: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			if len(args) == 0 {
				logrus.Infof("successfully cleared schedule; refreshes may run at any time")
			} else {
				logrus.Infof("successfully set schedule to %v", args)
			}

			return nil
		},
	}

	return cmd
}
