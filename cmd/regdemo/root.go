// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package main

import (
	"github.com/spf13/cobra"

	"github.com/firrel/regdemo/internal/config"
	"github.com/firrel/regdemo/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the regdemo CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regdemo",
		Short: "regdemo - account registration and session server",
		Long: `regdemo serves user registration with email verification,
cookie-based login sessions, password reset and profile management.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}

// loadConfig assembles the configuration from the config file, the
// environment and the flags changed on cmd. Without --config the file under
// the XDG config directory is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path, _ = xdg.ConfigFile()
	}
	return config.Loader{Path: path, Flags: cmd.Flags()}.Load()
}
