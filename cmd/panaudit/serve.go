package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"panaudit/internal/parser"
	"panaudit/internal/server"
	"panaudit/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the audit HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if exists
			godotenv.Load()

			cfg, err := loadConfig(configPath)
			if err != nil {
				slog.Error("Failed to load config", "error", err)
				return err
			}
			if cfg.Parser.StreamingThresholdBytes > 0 {
				parser.StreamingThreshold = cfg.Parser.StreamingThresholdBytes
			}

			st, err := store.Open(cfg.Database.Path)
			if err != nil {
				slog.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
				return err
			}
			defer st.Close()

			app := server.New(st)
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			slog.Info("Starting audit API", "addr", addr, "database", cfg.Database.Path)
			return app.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML configuration file")
	return cmd
}
