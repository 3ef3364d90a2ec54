// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/solo-foundation/solo/lib/codec"
	"github.com/solo-foundation/solo/lib/config"
	"github.com/solo-foundation/solo/lib/instance"
	"github.com/solo-foundation/solo/lib/ipc"
	"github.com/solo-foundation/solo/lib/version"
)

// launchPayload is the structured message a later launch hands to the
// primary: enough to reconstruct what the user asked for.
type launchPayload struct {
	Args []string `cbor:"args"`
	PID  int      `cbor:"pid"`
	CWD  string   `cbor:"cwd,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "solo-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var name string
	var allowSecondary bool
	var notifySecondary bool
	var perUser bool
	var sendTimeout time.Duration
	var showVersion bool

	flagSet := pflag.NewFlagSet("solo-demo", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "load identity and behavior from this YAML file")
	flagSet.StringVar(&name, "name", "solo-demo", "application name for instance scoping")
	flagSet.BoolVar(&allowSecondary, "allow-secondary", false, "let later launches run as secondaries")
	flagSet.BoolVar(&notifySecondary, "notify-secondary", false, "report secondary launches on the primary")
	flagSet.BoolVar(&perUser, "per-user", false, "scope the instance to the invoking user")
	flagSet.DurationVar(&sendTimeout, "send-timeout", 2*time.Second, "deadline for handing a message to the primary")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("solo-demo", version.String())
		return nil
	}

	file := &config.File{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		file = loaded
	} else {
		file.Application.Name = name
	}

	// Flags override the file where the user said so explicitly.
	if flagSet.Changed("name") {
		file.Application.Name = name
	}
	if flagSet.Changed("allow-secondary") {
		file.Instance.AllowSecondary = allowSecondary
	}
	if flagSet.Changed("notify-secondary") {
		file.Instance.NotifySecondary = notifySecondary
	}
	if flagSet.Changed("per-user") {
		file.Instance.PerUser = perUser
	}

	logger := file.NewLogger(os.Stderr)

	app, err := instance.New(file.Identity(), file.InstanceConfig(logger))
	if err != nil {
		return err
	}
	defer app.Close()

	switch app.Role() {
	case instance.RolePrimary:
		return servePrimary(app, logger)
	default:
		return forwardToPrimary(app, logger, flagSet.Args(), sendTimeout)
	}
}

// servePrimary logs launch notifications and inbound messages until
// the process is interrupted.
func servePrimary(app *instance.App, logger *slog.Logger) error {
	logger.Info("running as primary",
		"pid", os.Getpid(),
		"block", app.BlockID(),
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for {
		select {
		case sig := <-signals:
			logger.Info("shutting down", "signal", sig.String())
			return nil
		case event := <-app.Events():
			switch event := event.(type) {
			case ipc.InstanceStarted:
				logger.Info("instance started",
					"instance_id", event.InstanceID,
					"type", event.Type.String(),
				)
			case ipc.MessageReceived:
				logMessage(logger, event)
			}
		}
	}
}

// logMessage decodes a launch payload if the bytes parse as one, and
// falls back to logging the raw size otherwise. Peers are not
// required to use the CBOR convention.
func logMessage(logger *slog.Logger, event ipc.MessageReceived) {
	var payload launchPayload
	if err := codec.Unmarshal(event.Payload, &payload); err == nil && payload.PID != 0 {
		logger.Info("message received",
			"instance_id", event.InstanceID,
			"sender_pid", payload.PID,
			"args", payload.Args,
			"cwd", payload.CWD,
		)
		return
	}
	logger.Info("message received",
		"instance_id", event.InstanceID,
		"bytes", len(event.Payload),
	)
}

// forwardToPrimary hands this launch's command line to the primary.
// Used for both secondary and rejected roles; either way the process
// exits successfully afterward.
func forwardToPrimary(app *instance.App, logger *slog.Logger, args []string, timeout time.Duration) error {
	cwd, _ := os.Getwd()
	data, err := codec.Marshal(launchPayload{
		Args: args,
		PID:  os.Getpid(),
		CWD:  cwd,
	})
	if err != nil {
		return fmt.Errorf("encoding launch payload: %w", err)
	}

	if err := app.SendMessage(data, timeout); err != nil {
		return fmt.Errorf("forwarding launch to primary: %w", err)
	}
	logger.Info("forwarded launch to primary",
		"role", app.Role().String(),
		"instance_id", app.InstanceID(),
		"primary_pid", app.PrimaryPID(),
	)
	return nil
}
