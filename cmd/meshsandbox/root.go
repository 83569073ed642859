package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rbaliyan/meshsandbox/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "meshsandbox",
	Short: "Message exchange sandbox",
	Long: `meshsandbox serves a local stand-in for the message exchange API:
mailboxes, chunked transfers, inbox and outbox views, tracking and
endpoint lookup, backed by canned, in-memory or on-disk data.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build label",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), cfg.BuildLabel)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (YAML)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(serveCmd, versionCmd)
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Log.Format == config.LogText {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("env", cfg.Env, "build_label", cfg.BuildLabel), nil
}
