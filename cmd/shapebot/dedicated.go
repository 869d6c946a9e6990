package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"shapebot/internal/store"

	"github.com/spf13/cobra"
)

func dedicatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedicated",
		Short: "Manage per-guild dedicated channels",
		Long:  "The bot answers every message in a guild's dedicated channel. The same settings are available in Discord through /dedicated.",
	}

	withStore := func(fn func(ctx context.Context, s *store.SQLiteStore) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(context.Background(), s)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [guild-id] [channel-id]",
		Short: "Set the dedicated channel of a guild",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
				if err := s.SetDedicatedChannel(ctx, args[0], args[1]); err != nil {
					return err
				}
				logger.Info("dedicated channel set", "guild", args[0], "channel", args[1])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [guild-id]",
		Short: "Show the dedicated channel of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
				ch, ok, err := s.DedicatedChannel(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no dedicated channel for guild %s", args[0])
				}
				fmt.Println(ch)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [guild-id]",
		Short: "Remove the dedicated channel of a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
				if err := s.ClearDedicatedChannel(ctx, args[0]); err != nil {
					return err
				}
				logger.Info("dedicated channel cleared", "guild", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all dedicated channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, s *store.SQLiteStore) error {
				all, err := s.ListDedicatedChannels(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "GUILD\tCHANNEL\tUPDATED")
				for _, dc := range all {
					fmt.Fprintf(w, "%s\t%s\t%s\n", dc.GuildID, dc.ChannelID, dc.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	})

	return cmd
}
