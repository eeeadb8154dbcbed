package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func errUsage(cmd *cobra.Command, msg string) error {
	return fmt.Errorf("%s\nUsage: %s", msg, cmd.UseLine())
}

func newAdminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Community management (admins and moderators)",
	}

	var uq client.AdminUserQuery
	users := &cobra.Command{
		Use:   "users",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.AdminListUsers(cmd.Context(), uq)
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) {
				rows := make([][]string, 0, len(res.Users))
				for _, u := range res.Users {
					rows = append(rows, []string{u.ID, u.Username, u.Email, u.Role, u.Status, u.CreatedAt.Format("2006-01-02")})
				}
				table(w, []string{"ID", "USERNAME", "EMAIL", "ROLE", "STATUS", "JOINED"}, rows)
				pageFooter(w, len(res.Users), res.Meta.Total, uq.Offset)
			})
		},
	}
	users.Flags().StringVarP(&uq.Query, "search", "s", "", "Match username, email or display name")
	users.Flags().StringVar(&uq.Role, "role", "", "member, moderator or admin")
	users.Flags().StringVar(&uq.Status, "status", "", "active or suspended")
	addPageFlags(users, &uq.Page, 50)

	user := &cobra.Command{
		Use:   "user <user-id>",
		Short: "Show one account with activity stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.AdminGetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) {
				printUser(w, &res.User)
				fmt.Fprintf(w, "Sessions: %d active\n", res.Stats.SessionsActive)
			})
		},
	}

	var reason string
	setRole := &cobra.Command{
		Use:   "set-role <user-id> <member|moderator|admin>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[1]
			return c.updateUser(cmd, args[0], client.AdminUpdateUserRequest{Role: &role, Reason: reason})
		},
	}
	setRole.Flags().StringVar(&reason, "reason", "", "Reason recorded in the security log")

	setStatus := &cobra.Command{
		Use:   "set-status <user-id> <active|suspended>",
		Short: "Suspend or reinstate an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := args[1]
			return c.updateUser(cmd, args[0], client.AdminUpdateUserRequest{Status: &status, Reason: reason})
		},
	}
	setStatus.Flags().StringVar(&reason, "reason", "", "Reason recorded in the security log")

	var eq client.SecurityEventQuery
	var since time.Duration
	events := &cobra.Command{
		Use:   "events",
		Short: "Show the security event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				eq.Since = time.Now().Add(-since)
			}
			res, err := c.client.SecurityEvents(cmd.Context(), eq)
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) {
				rows := make([][]string, 0, len(res.Events))
				for _, e := range res.Events {
					userID := "-"
					if e.UserID != nil {
						userID = *e.UserID
					}
					rows = append(rows, []string{e.CreatedAt.Format(time.DateTime), severity(e.Severity), e.Type, userID, e.IP, e.Path})
				}
				table(w, []string{"TIME", "SEVERITY", "TYPE", "USER", "IP", "PATH"}, rows)
				pageFooter(w, len(res.Events), res.Meta.Total, eq.Offset)
			})
		},
	}
	events.Flags().StringVar(&eq.Type, "type", "", "Event type, e.g. auth.login_failed")
	events.Flags().StringVar(&eq.Severity, "severity", "", "info, warning or critical")
	events.Flags().StringVar(&eq.UserID, "user", "", "Only events for this user id")
	events.Flags().DurationVar(&since, "since", 0, "Only events newer than this, e.g. 24h")
	addPageFlags(events, &eq.Page, 50)

	rateLimit := &cobra.Command{
		Use:   "rate-limit",
		Short: "Show rate limiter settings and recent violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.RateLimitStatus(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(res, func(w io.Writer) { printRateLimit(w, res) })
		},
	}

	overview := &cobra.Command{
		Use:   "overview",
		Short: "Community analytics and realtime counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.AnalyticsOverview(cmd.Context())
			if err != nil {
				return err
			}
			rt, err := c.client.RealtimeStats(cmd.Context())
			if err != nil {
				return err
			}
			out := struct {
				*client.AnalyticsOverview
				Realtime *client.RealtimeStats `json:"realtime"`
			}{res, rt}
			return c.emit(out, func(w io.Writer) { printOverview(w, res, rt) })
		},
	}

	cmd.AddCommand(users, user, setRole, setStatus, events, rateLimit, overview)
	return cmd
}

func (c *cli) updateUser(cmd *cobra.Command, id string, req client.AdminUpdateUserRequest) error {
	user, err := c.client.AdminUpdateUser(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	return c.emit(user, func(w io.Writer) {
		green.Fprintf(w, "%s is now %s (%s)\n", user.Username, user.Role, user.Status)
	})
}

func severity(s string) string {
	switch s {
	case "critical":
		return red.Sprint(s)
	case "warning":
		return yellow.Sprint(s)
	}
	return s
}

func printRateLimit(w io.Writer, s *client.RateLimitStatus) {
	fmt.Fprintf(w, "Backend:         %s\n", s.Backend)
	for _, l := range []struct {
		name string
		cfg  *client.RateLimitConfig
	}{{"General", s.General}, {"Auth", s.Auth}} {
		if l.cfg == nil {
			fmt.Fprintf(w, "%-16s disabled\n", l.name+":")
			continue
		}
		fmt.Fprintf(w, "%-16s %.1f req/s, burst %d\n", l.name+":", l.cfg.RPS, l.cfg.Burst)
	}
	fmt.Fprintf(w, "Tracked clients: %d\n", s.TrackedClients)

	if len(s.RecentViolations) == 0 {
		dim.Fprintln(w, "\nNo recent violations")
		return
	}
	fmt.Fprintln(w)
	rows := make([][]string, 0, len(s.RecentViolations))
	for _, v := range s.RecentViolations {
		rows = append(rows, []string{v.Key, v.Path, fmt.Sprint(v.Count), ago(v.LastSeen)})
	}
	table(w, []string{"KEY", "PATH", "COUNT", "LAST SEEN"}, rows)
}

func printOverview(w io.Writer, a *client.AnalyticsOverview, rt *client.RealtimeStats) {
	bold.Fprintln(w, "Community")
	fmt.Fprintf(w, "  Users:   %d (%d new this week, %d active)\n", a.Users.Total, a.Users.New7d, a.Users.Active)
	fmt.Fprintf(w, "  Threads: %d (%d new this week)\n", a.Threads.Total, a.Threads.New7d)
	fmt.Fprintf(w, "  Posts:   %d (%d new this week)\n", a.Posts.Total, a.Posts.New7d)
	fmt.Fprintf(w, "  Unread notifications: %d\n", a.NotificationsUnread)

	if len(a.TopTags) > 0 {
		tags := make([]string, 0, len(a.TopTags))
		for _, t := range a.TopTags {
			tags = append(tags, fmt.Sprintf("#%s (%d)", t.Tag, t.Count))
		}
		fmt.Fprintf(w, "  Top tags: %s\n", strings.Join(tags, ", "))
	}

	if len(a.Activity) > 0 {
		days := a.Activity
		sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
		fmt.Fprintln(w)
		rows := make([][]string, 0, len(days))
		for _, d := range days {
			rows = append(rows, []string{d.Date, fmt.Sprint(d.Users), fmt.Sprint(d.Threads), fmt.Sprint(d.Posts)})
		}
		table(w, []string{"DATE", "NEW USERS", "THREADS", "POSTS"}, rows)
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Realtime")
	fmt.Fprintf(w, "  Connections: %d active, %d total, %d dropped\n", rt.ActiveConnections, rt.TotalConnections, rt.ConnectionsDropped)
	fmt.Fprintf(w, "  Messages:    %d sent, %d received, %d errors\n", rt.MessagesSent, rt.MessagesReceived, rt.Errors)
}
