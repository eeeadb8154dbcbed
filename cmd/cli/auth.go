package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func newAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  "Sign in and out of KhoshGolpo",
	}

	var identifier, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email or username",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if identifier == "" {
				if identifier, err = c.prompt("Email or username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = c.promptPassword("Password: "); err != nil {
					return err
				}
			}
			if identifier == "" || password == "" {
				return errors.New("email/username and password are required")
			}

			session, err := c.client.Login(cmd.Context(), client.LoginRequest{Identifier: identifier, Password: password})
			if err != nil {
				return err
			}
			return c.emit(session.User, func(w io.Writer) {
				if session.User == nil {
					green.Fprintln(w, "Signed in")
					return
				}
				green.Fprintf(w, "Signed in as %s", session.User.Username)
				fmt.Fprintf(w, " (%s)\n", session.User.Role)
			})
		},
	}
	login.Flags().StringVarP(&identifier, "user", "u", "", "Email or username")
	login.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")

	var reg client.RegisterRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if reg.Password == "" {
				if reg.Password, err = c.promptPassword("Choose a password: "); err != nil {
					return err
				}
			}
			session, err := c.client.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			return c.emit(session.User, func(w io.Writer) {
				green.Fprintf(w, "Welcome, %s! You are signed in.\n", reg.Username)
			})
		},
	}
	register.Flags().StringVar(&reg.Email, "email", "", "Email address")
	register.Flags().StringVar(&reg.Username, "username", "", "Username")
	register.Flags().StringVar(&reg.DisplayName, "display-name", "", "Display name")
	register.Flags().StringVarP(&reg.Password, "password", "p", "", "Password (prompted when omitted)")
	_ = register.MarkFlagRequired("email")
	_ = register.MarkFlagRequired("username")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := c.client.Session(); !ok {
				c.success("Not signed in")
				return nil
			}
			if err := c.client.Logout(cmd.Context()); err != nil {
				c.log.Debug("Server logout failed", "err", err)
			}
			c.success("Signed out")
			return nil
		},
	}

	me := &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			return c.emit(user, func(w io.Writer) { printUser(w, user) })
		},
	}

	cmd.AddCommand(login, register, logout, me)
	return cmd
}

func printUser(w io.Writer, u *client.User) {
	bold.Fprintf(w, "%s", u.DisplayName)
	dim.Fprintf(w, " @%s\n", u.Username)
	fmt.Fprintf(w, "Role:     %s\n", u.Role)
	if u.Status != "" {
		fmt.Fprintf(w, "Status:   %s\n", u.Status)
	}
	if u.Email != "" {
		fmt.Fprintf(w, "Email:    %s\n", u.Email)
	}
	if u.Location != "" {
		fmt.Fprintf(w, "Location: %s\n", u.Location)
	}
	fmt.Fprintf(w, "Threads:  %d  Posts: %d\n", u.ThreadCount, u.PostCount)
	fmt.Fprintf(w, "Joined:   %s\n", u.CreatedAt.Format("2006-01-02"))
	if u.Bio != "" {
		fmt.Fprintf(w, "\n%s\n", u.Bio)
	}
}
