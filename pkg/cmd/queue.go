package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage/db"
)

var (
	queueStatus string
	queueLimit  int

	queueCmd = &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the persistent processing queue",
	}

	queueListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list queue items by status",
		Aliases: []string{"list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), func(ctx context.Context, repo repository.QueueRepository) error {
				items, err := repo.FindByStatus(ctx, model.QueueStatus(strings.ToUpper(queueStatus)), queueLimit)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPHOTO\tCOMMAND\tSTATUS\tRETRIES\tCREATED\tLAST ERROR")

				for _, it := range items {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d/%d\t%s\t%s\n",
						it.ID, it.PhotoID, it.CommandType, it.Status,
						it.RetryCount, it.MaxRetries, humanize.Time(it.CreatedAt), it.LastError)
				}

				return w.Flush()
			})
		},
	}

	queueStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "count queue items per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), func(ctx context.Context, repo repository.QueueRepository) error {
				counts, err := repo.CountByStatus(ctx)
				if err != nil {
					return err
				}

				for _, st := range []model.QueueStatus{
					model.QueuePending, model.QueueProcessing, model.QueueCompleted,
					model.QueueFailed, model.QueueDeadLetter,
				} {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", st, humanize.Comma(counts[st]))
				}

				return nil
			})
		},
	}

	// 将 FAILED 或 DEAD_LETTER 条目重置为 PENDING，下一轮重放时重新投递.
	queueRequeueCmd = &cobra.Command{
		Use:   "requeue <id>",
		Short: "reset a failed or dead-lettered item to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid queue item id %q: %w", args[0], err)
			}

			return withQueue(cmd.Context(), func(ctx context.Context, repo repository.QueueRepository) error {
				item, err := repo.FindByID(ctx, uint(id))
				if err != nil {
					return err
				}

				if err := requeue(item); err != nil {
					return err
				}

				if err := repo.Update(ctx, item); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "queue item %d requeued\n", item.ID)

				return nil
			})
		},
	}
)

var errNotRequeueable = errors.New("only FAILED or DEAD_LETTER items can be requeued")

func requeue(item *model.ProcessingQueueItem) error {
	if item.Status != model.QueueFailed && item.Status != model.QueueDeadLetter {
		return fmt.Errorf("item %d is %s: %w", item.ID, item.Status, errNotRequeueable)
	}

	item.Status = model.QueuePending
	item.RetryCount = 0
	item.NextRetryAt = nil
	item.LastError = ""

	return nil
}

func withQueue(ctx context.Context, fn func(context.Context, repository.QueueRepository) error) error {
	client, err := db.New(ctx, &configs.GetConfig().DB)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, repository.NewQueueRepository(client.DB))
}

// registerQueueCommands 注册处理队列相关命令.
func registerQueueCommands() {
	queueListCmd.Flags().StringVarP(&queueStatus, "status", "s", string(model.QueueDeadLetter), "queue status to list")
	queueListCmd.Flags().IntVarP(&queueLimit, "limit", "n", 50, "maximum items to list")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueRequeueCmd)

	rootCmd.AddCommand(queueCmd)
}
