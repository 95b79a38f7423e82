package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/photovault/pkg/internal/events"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
)

var (
	storageCmd = &cobra.Command{
		Use:     "storage",
		Short:   "Object storage related commands",
		Aliases: []string{"blob"},
	}

	storageListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered object storage providers",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered storage providers:")

			for _, name := range blob.Registered() {
				fmt.Fprintln(cmd.OutOrStdout(), " - "+name)
			}
		},
	}

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Event publishing related commands",
	}

	eventsListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered event publishing strategies",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered event providers:")

			for _, name := range events.Registered() {
				fmt.Fprintln(cmd.OutOrStdout(), " - "+name)
			}
		},
	}
)

// registerStorageCommands 注册对象存储相关命令.
func registerStorageCommands() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageListCmd)
}

// registerEventsCommands 注册事件发布相关命令.
func registerEventsCommands() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
}
