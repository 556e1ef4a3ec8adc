package main

import (
	"fmt"
	"log/slog"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/replyloop/replyloop/pkg/app"
)

// program adapts the application loop to the service manager interface.
type program struct {
	configPath string
	done       chan struct{}
}

func (p *program) Start(service.Service) error {
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := app.Run(app.RunParams{
			ConfigPath: p.configPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
		}); err != nil {
			slog.Error("replyloop exited", "error", err)
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	// app.Run exits on SIGTERM, which the service manager sends; nothing
	// more to tear down here.
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|run]",
		Short:     "Manage replyloop as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			svcConfig := &service.Config{
				Name:        "replyloop",
				DisplayName: "replyloop",
				Description: "Comment ingestion and reply automation daemon",
				Arguments:   []string{"service", "run"},
			}
			if cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			svc, err := service.New(&program{configPath: cfgPath}, svcConfig)
			if err != nil {
				return err
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}

			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("Service %s: ok\n", action)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
