/*
Package main is the entry point for the Pong realtime server.

The default command loads configuration, initialises logging, wires the optional infrastructure
(Redis, Postgres, S3, NATS), starts the HTTP server with the WebSocket endpoint and the periodic
jobs, and shuts everything down gracefully on SIGINT or SIGTERM. The token command mints a
development credential.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pongrt/internal/configs"
	"pongrt/internal/pkg/auth/jwt"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pongrt",
		Short:        "Realtime Pong coordination server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID   int64
		name     string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed credential for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}

			cfg, err := configs.LoadConfig()
			if err != nil {
				return err
			}

			token, err := jwt.GenerateToken(userID, name, cfg.JWTSecret, duration)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id carried by the token")
	cmd.Flags().StringVar(&name, "name", "", "optional display name")
	cmd.Flags().DurationVar(&duration, "ttl", jwt.DevTokenExpiration, "token lifetime")

	return cmd
}
