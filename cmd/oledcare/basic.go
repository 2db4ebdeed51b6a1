package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oledcare/oledcare/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "enable",
		Short:   "Enable scheduled refreshes",
		GroupID: gBasic,
		Long: `Enable oledcare.

Scheduled refresh routines will run at the configured interval. This is the default.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetEnabled(true)
			if err != nil {
				return fmt.Errorf("failed to enable oledcare: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully enabled oledcare")

			return nil
		},
	}
}

func NewDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disable",
		Short:   "Disable scheduled refreshes",
		GroupID: gBasic,
		Long: `Disable oledcare.

No refresh routine will run, scheduled or manual, until oledcare is enabled again. A routine that is running right now is interrupted with its progress saved, so "oledcare resume" can pick it back up later.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.SetEnabled(false)
			if err != nil {
				return fmt.Errorf("failed to disable oledcare: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully disabled oledcare. To re-enable, run \"oledcare enable\".")

			return nil
		},
	}
}

func NewTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "trigger",
		Short:   "Start a refresh routine now",
		GroupID: gBasic,
		Long: `Start a refresh routine immediately.

Manual triggers skip the schedule window and smart mode checks, but a routine that is already running is never interrupted by a trigger.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Trigger()
			if err != nil {
				return fmt.Errorf("failed to trigger refresh: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func NewCancelCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:     "cancel",
		Short:   "Stop the running refresh routine",
		GroupID: gBasic,
		Long: `Stop the refresh routine that is running right now.

With --save, the interruption point is persisted so "oledcare resume" can continue the routine where it left off.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.CancelRefresh(save)
			if err != nil {
				return fmt.Errorf("failed to cancel refresh: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save progress so the routine can be resumed later")

	return cmd
}

func NewResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "resume",
		Short:   "Resume an interrupted refresh routine",
		GroupID: gBasic,
		Long: `Resume a refresh routine that was interrupted with its progress saved.

If nothing was interrupted, this does nothing.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Resume()
			if err != nil {
				return fmt.Errorf("failed to resume refresh: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}
