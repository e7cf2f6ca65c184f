package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultScope/internal/config"
	"vaultScope/internal/vault"
)

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Manage the tracked vault list of an owner",
	}

	cmd.PersistentFlags().String("owner", "", "owner address")
	cmd.PersistentFlags().String("vaults-file", "./data/vaults.json", "tracked vault list file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <vault>...",
			Short: "Track vault addresses",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				list, owner, err := trackList(cmd)
				if err != nil {
					return err
				}
				added, err := list.Add(owner, args...)
				if err != nil {
					return err
				}
				for _, addr := range added {
					fmt.Fprintln(cmd.OutOrStdout(), "added", addr)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <vault>",
			Short: "Stop tracking a vault address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				list, owner, err := trackList(cmd)
				if err != nil {
					return err
				}
				removed, err := list.Remove(owner, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%s: %w", args[0], vault.ErrNotTracked)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", vault.NormalizeAddress(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print tracked vault addresses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				list, owner, err := trackList(cmd)
				if err != nil {
					return err
				}
				addrs, err := list.Load(owner)
				if err != nil {
					return err
				}
				for _, addr := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), addr)
				}
				return nil
			},
		},
	)

	return cmd
}

func trackList(cmd *cobra.Command) (*vault.ListStore, string, error) {
	cfg, err := config.Load(configFile(cmd), cmd.Flags())
	if err != nil {
		return nil, "", err
	}
	if cfg.Owner == "" {
		return nil, "", fmt.Errorf("owner is required")
	}
	return vault.NewListStore(cfg.VaultsFile), cfg.Owner, nil
}
