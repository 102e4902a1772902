package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage encrypted secrets",
	Long:  "Store API keys and webhook tokens encrypted at rest. The key \"anthropic_api_key\" is consulted when no API key is configured.",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.vault.Store(cmd.Context(), args[0], []byte(args[1]))
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		value, err := a.vault.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(value))
		return nil
	},
}

var secretRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.vault.Delete(cmd.Context(), args[0])
	},
}

var secretLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List secret keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		keys, err := a.vault.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretRmCmd)
	secretCmd.AddCommand(secretLsCmd)
	rootCmd.AddCommand(secretCmd)
}
