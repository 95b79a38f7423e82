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
	photoUser   string
	photoStatus string
	photoLimit  int

	photoCmd = &cobra.Command{
		Use:   "photo",
		Short: "Inspect photos and their audit trail",
	}

	photoListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list photos by user and/or status",
		Aliases: []string{"list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := photoQuery(photoUser, photoStatus)
			if err != nil {
				return err
			}

			return withRepos(cmd.Context(), func(ctx context.Context, photos *repository.GormPhotoRepository, _ *repository.GormEventRepository) error {
				page := repository.Page{Size: photoLimit}.Normalize()

				var (
					list  []model.Photo
					total int64
				)

				switch {
				case q.user != "" && q.status != "":
					list, total, err = photos.ListByUserAndStatus(ctx, q.user, q.status, page)
				case q.user != "":
					list, total, err = photos.ListByUser(ctx, q.user, page)
				default:
					list, total, err = photos.ListByStatus(ctx, q.status, page)
				}

				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSER\tFILE\tSIZE\tSTATUS\tRETRIES\tUPLOADED")

				for _, p := range list {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
						p.ID, p.UserID, p.OriginalFileName, humanize.IBytes(uint64(p.FileSize)),
						p.Status, p.RetryCount, p.TotalAttempts, humanize.Time(p.UploadedAt))
				}

				if err := w.Flush(); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d of %s photos\n", len(list), humanize.Comma(total))

				return nil
			})
		},
	}

	photoEventsCmd = &cobra.Command{
		Use:   "events <id>",
		Short: "print the audit trail of a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid photo id %q", args[0])
			}

			return withRepos(cmd.Context(), func(ctx context.Context, _ *repository.GormPhotoRepository, events *repository.GormEventRepository) error {
				list, err := events.ListByPhoto(ctx, uint(id))
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tEVENT\tOK\tCORRELATION\tDETAILS")

				for _, e := range list {
					details := e.Details
					if !e.Success && e.ErrorMessage != "" {
						details = e.ErrorMessage
					}

					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.EventType, e.Success, e.CorrelationID, details)
				}

				return w.Flush()
			})
		},
	}

	photoStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "count photos per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepos(cmd.Context(), func(ctx context.Context, photos *repository.GormPhotoRepository, _ *repository.GormEventRepository) error {
				counts, err := photos.CountByStatus(ctx)
				if err != nil {
					return err
				}

				for _, st := range model.AllStatuses() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", st, humanize.Comma(counts[st]))
				}

				return nil
			})
		},
	}
)

type listFilter struct {
	user   string
	status model.PhotoStatus
}

// photoQuery 与 HTTP 列表接口一致：user 与 status 至少提供一个.
func photoQuery(user, status string) (listFilter, error) {
	f := listFilter{user: user}

	if status != "" {
		st, ok := model.ParseStatus(strings.ToUpper(strings.TrimSpace(status)))
		if !ok {
			return f, fmt.Errorf("unknown photo status %q", status)
		}

		f.status = st
	}

	if f.user == "" && f.status == "" {
		return f, errors.New("--user or --status is required")
	}

	return f, nil
}

func withRepos(ctx context.Context, fn func(context.Context, *repository.GormPhotoRepository, *repository.GormEventRepository) error) error {
	client, err := db.New(ctx, &configs.GetConfig().DB)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(ctx, repository.NewPhotoRepository(client.DB), repository.NewEventRepository(client.DB))
}

// registerPhotoCommands 注册照片查询命令.
func registerPhotoCommands() {
	photoListCmd.Flags().StringVarP(&photoUser, "user", "u", "", "owner of the photos")
	photoListCmd.Flags().StringVarP(&photoStatus, "status", "s", "", "photo status, e.g. FAILED")
	photoListCmd.Flags().IntVarP(&photoLimit, "limit", "n", 20, "maximum photos to list")

	photoCmd.AddCommand(photoListCmd)
	photoCmd.AddCommand(photoEventsCmd)
	photoCmd.AddCommand(photoStatsCmd)

	rootCmd.AddCommand(photoCmd)
}
