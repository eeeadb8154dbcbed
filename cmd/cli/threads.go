package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func addPageFlags(cmd *cobra.Command, p *client.Page, defaultLimit int) {
	cmd.Flags().IntVar(&p.Limit, "limit", defaultLimit, "Maximum number of results")
	cmd.Flags().IntVar(&p.Offset, "offset", 0, "Number of results to skip")
}

func newThreadsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "threads",
		Aliases: []string{"thread", "t"},
		Short:   "Browse and start discussion threads",
	}

	var q client.ThreadQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.ListThreads(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) { printThreadList(w, res, q.Offset) })
		},
	}
	list.Flags().StringVar(&q.Tag, "tag", "", "Only threads with this tag")
	list.Flags().StringVar(&q.Author, "author", "", "Only threads by this username")
	list.Flags().StringVarP(&q.Query, "search", "s", "", "Full-text search")
	list.Flags().StringVar(&q.Status, "status", "", "open, locked or archived (moderators)")
	addPageFlags(list, &q.Page, 20)

	var showPage client.Page
	show := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show a thread and its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.GetThread(cmd.Context(), args[0], showPage)
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) { printThreadDetail(w, res, showPage.Offset) })
		},
	}
	addPageFlags(show, &showPage, 50)

	var create client.CreateThreadRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := c.client.CreateThread(cmd.Context(), create)
			if err != nil {
				return err
			}
			return c.emit(thread, func(w io.Writer) {
				green.Fprintf(w, "Created thread %s\n", thread.ID)
			})
		},
	}
	createCmd.Flags().StringVar(&create.Title, "title", "", "Thread title")
	createCmd.Flags().StringVar(&create.Body, "body", "", "Opening post")
	createCmd.Flags().StringSliceVar(&create.Tags, "tag", nil, "Tag (repeatable)")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("body")

	var replyBody, parentID string
	reply := &cobra.Command{
		Use:   "reply <thread-id>",
		Short: "Post a reply to a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.CreatePostRequest{Body: replyBody}
			if parentID != "" {
				req.ParentPostID = &parentID
			}
			post, err := c.client.CreatePost(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return c.emit(post, func(w io.Writer) {
				green.Fprintf(w, "Posted reply %s\n", post.ID)
				if len(post.Mentions) > 0 {
					dim.Fprintf(w, "Mentioned: @%s\n", strings.Join(post.Mentions, ", @"))
				}
			})
		},
	}
	reply.Flags().StringVar(&replyBody, "body", "", "Reply text")
	reply.Flags().StringVar(&parentID, "parent", "", "Reply to this post id")
	_ = reply.MarkFlagRequired("body")

	var modStatus, modReason string
	moderate := &cobra.Command{
		Use:   "moderate <thread-id>",
		Short: "Lock, archive or reopen a thread (moderators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := c.client.ModerateThread(cmd.Context(), args[0], client.ModerationRequest{Status: modStatus, Reason: modReason})
			if err != nil {
				return err
			}
			return c.emit(thread, func(w io.Writer) {
				green.Fprintf(w, "Thread %s is now %s\n", thread.ID, thread.Status)
			})
		},
	}
	moderate.Flags().StringVar(&modStatus, "status", "", "open, locked or archived")
	moderate.Flags().StringVar(&modReason, "reason", "", "Reason recorded with the change")
	_ = moderate.MarkFlagRequired("status")

	var postStatus, postReason string
	moderatePost := &cobra.Command{
		Use:   "moderate-post <post-id>",
		Short: "Hide or restore a post (moderators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := c.client.ModeratePost(cmd.Context(), args[0], client.ModerationRequest{Status: postStatus, Reason: postReason})
			if err != nil {
				return err
			}
			return c.emit(post, func(w io.Writer) {
				green.Fprintf(w, "Post %s is now %s\n", post.ID, post.Status)
			})
		},
	}
	moderatePost.Flags().StringVar(&postStatus, "status", "", "visible or hidden")
	moderatePost.Flags().StringVar(&postReason, "reason", "", "Reason recorded with the change")
	_ = moderatePost.MarkFlagRequired("status")

	cmd.AddCommand(list, show, createCmd, reply, moderate, moderatePost)
	return cmd
}

func authorName(u *client.UserSummary, fallback string) string {
	if u == nil {
		return fallback
	}
	return "@" + u.Username
}

func printThreadList(w io.Writer, res *client.ThreadList, offset int) {
	if len(res.Threads) == 0 {
		dim.Fprintln(w, "No threads found")
		return
	}
	rows := make([][]string, 0, len(res.Threads))
	for _, t := range res.Threads {
		title := truncate(t.Title, 50)
		if t.Status != "" && t.Status != "open" {
			title += " [" + t.Status + "]"
		}
		rows = append(rows, []string{
			t.ID,
			title,
			authorName(t.Author, t.AuthorID),
			fmt.Sprint(t.PostCount),
			strings.Join(t.Tags, ","),
			ago(t.LastActivityAt),
		})
	}
	table(w, []string{"ID", "TITLE", "AUTHOR", "POSTS", "TAGS", "ACTIVE"}, rows)
	pageFooter(w, len(res.Threads), res.Meta.Total, offset)
}

func printThreadDetail(w io.Writer, res *client.ThreadDetail, offset int) {
	t := res.Thread
	bold.Fprintln(w, t.Title)
	dim.Fprintf(w, "%s · %s · %d posts", authorName(t.Author, t.AuthorID), ago(t.CreatedAt), t.PostCount)
	if t.Status != "open" {
		yellow.Fprintf(w, " · %s", t.Status)
	}
	fmt.Fprintln(w)
	if len(t.Tags) > 0 {
		cyan.Fprintf(w, "#%s\n", strings.Join(t.Tags, " #"))
	}
	fmt.Fprintf(w, "\n%s\n", t.Body)

	for _, p := range res.Posts {
		fmt.Fprintln(w)
		indent := ""
		if p.ParentPostID != nil {
			indent = "    "
		}
		bold.Fprintf(w, "%s%s", indent, authorName(p.Author, p.AuthorID))
		dim.Fprintf(w, " %s  %s\n", ago(p.CreatedAt), p.ID)
		if p.Status != "" && p.Status != "visible" {
			yellow.Fprintf(w, "%s[%s]\n", indent, p.Status)
		}
		for _, line := range strings.Split(p.Body, "\n") {
			fmt.Fprintf(w, "%s%s\n", indent, line)
		}
	}
	pageFooter(w, len(res.Posts), res.Meta.Total, offset)
}
