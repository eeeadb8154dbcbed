package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func newNotificationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "Read your notifications",
	}

	var unread bool
	var page client.Page
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.ListNotifications(cmd.Context(), unread, page)
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) { printNotifications(w, res, page.Offset) })
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "Only unread notifications")
	addPageFlags(list, &page, 20)

	var all bool
	read := &cobra.Command{
		Use:   "read [notification-id...]",
		Short: "Mark notifications as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errUsage(cmd, "pass notification ids or --all")
			}

			var res *client.MarkResult
			var err error
			if all {
				res, err = c.client.MarkAllNotificationsRead(cmd.Context())
			} else {
				res, err = c.client.MarkNotificationsRead(cmd.Context(), args)
			}
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) {
				green.Fprintf(w, "Marked %d read, %d unread remaining\n", res.Updated, res.Unread)
			})
		},
	}
	read.Flags().BoolVar(&all, "all", false, "Mark every notification read")

	cmd.AddCommand(list, read)
	return cmd
}

func printNotifications(w io.Writer, res *client.NotificationList, offset int) {
	if len(res.Notifications) == 0 {
		dim.Fprintln(w, "No notifications")
		return
	}
	for _, n := range res.Notifications {
		marker := "  "
		if !n.IsRead {
			marker = cyan.Sprint("● ")
		}
		bold.Fprintf(w, "%s%s", marker, n.Title)
		dim.Fprintf(w, "  %s  %s\n", ago(n.CreatedAt), n.ID)
		if n.Body != "" {
			io.WriteString(w, "  "+truncate(n.Body, 100)+"\n")
		}
	}
	dim.Fprintf(w, "%d unread\n", res.Meta.Unread)
	pageFooter(w, len(res.Notifications), res.Meta.Total, offset)
}
