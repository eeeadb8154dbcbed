package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/realtime"
)

func newWatchCmd(c *cli) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new threads, posts and notifications as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := c.client.Session(); !ok {
				return errors.New("not signed in: run \"khoshgolpo auth login\" first")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub := realtime.NewSubscriber(realtime.Config{
				BaseURL: c.client.BaseURL(),
				Token: func() string {
					if s, ok := c.client.Session(); ok {
						return s.AccessToken
					}
					return ""
				},
				Logger: c.log,
			})
			realtime.NewInvalidator(c.client.Cache(), c.log).Attach(sub)
			sub.On("", func(e realtime.Event) {
				if line, ok := formatEvent(e, threadID); ok {
					c.printEvent(e, line)
				}
			})

			if !c.jsonOutput() {
				dim.Fprintf(c.errOut, "Watching %s (Ctrl-C to stop)\n", c.client.BaseURL())
			}
			sub.Start(ctx)
			<-ctx.Done()
			sub.Close()
			return nil
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Only show posts in this thread")
	return cmd
}

func (c *cli) printEvent(e realtime.Event, line string) {
	_ = c.emit(e, func(w io.Writer) {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		dim.Fprintf(w, "%s ", ts.Local().Format(time.TimeOnly))
		io.WriteString(w, line+"\n")
	})
}

// formatEvent renders one event as a line of text. ok is false for events
// the watch view skips.
func formatEvent(e realtime.Event, threadID string) (string, bool) {
	switch e.Type {
	case realtime.EventThreadCreated:
		if threadID != "" {
			return "", false
		}
		var t client.Thread
		if err := e.Decode(&t); err != nil {
			return "", false
		}
		return fmt.Sprintf("%s %s started %q  %s", cyan.Sprint("thread"), authorName(t.Author, t.AuthorID), t.Title, t.ID), true

	case realtime.EventPostCreated:
		var p client.Post
		if err := e.Decode(&p); err != nil {
			return "", false
		}
		if threadID != "" && p.ThreadID != threadID {
			return "", false
		}
		return fmt.Sprintf("%s %s in %s: %s", green.Sprint("post"), authorName(p.Author, p.AuthorID), p.ThreadID, truncate(p.Body, 80)), true

	case realtime.EventNotificationCreated:
		var n client.Notification
		if err := e.Decode(&n); err != nil {
			return "", false
		}
		return fmt.Sprintf("%s %s", yellow.Sprint("notification"), n.Title), true
	}
	return "", false
}
