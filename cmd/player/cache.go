package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"playercore/internal/control"
	"playercore/internal/home"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or manage a running player's cache, over its control socket",
	}
	cmd.PersistentFlags().String("output", "table", "output format: table or json")

	cmd.AddCommand(newCacheStatCommand(), newCachePurgeCommand())
	return cmd
}

func clientFromFlags(cmd *cobra.Command) (*control.Client, error) {
	homeFlag, _ := cmd.Flags().GetString("home")
	var hd home.Dir
	if homeFlag != "" {
		hd = home.New(homeFlag)
	} else {
		var err error
		hd, err = home.Default()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
	}
	return control.NewClient(hd.SocketPath()), nil
}

func newCacheStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print the running player's collection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			stat, err := client.Stat(ctx)
			if err != nil {
				return fmt.Errorf("stat: %w", err)
			}

			format, _ := cmd.Flags().GetString("output")
			if format == "json" {
				return json.NewEncoder(os.Stdout).Encode(stat)
			}
			fmt.Printf("collecting:        %v\n", stat.Collecting)
			fmt.Printf("collect_interval:  %s\n", stat.CollectInterval)
			if stat.CurrentLayout != "" {
				fmt.Printf("current_layout:    %s\n", stat.CurrentLayout)
			}
			return nil
		},
	}
}

func newCachePurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge [ids...]",
		Short: "Invalidate cached files, or everything if no ids are given",
		Long:  "Each id is \"kind/number\", e.g. media/42 or layout/7. With no arguments, purges everything the running player knows about.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := client.Purge(ctx, args); err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			if len(args) == 0 {
				fmt.Println("purged all cached files")
			} else {
				fmt.Printf("purged %s\n", strings.Join(args, ", "))
			}
			return nil
		},
	}
	return cmd
}
