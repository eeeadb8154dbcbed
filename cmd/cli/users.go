package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

func newUsersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user", "profile"},
		Short:   "View profiles and edit your own",
	}

	show := &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user's public profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.client.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.emit(user, func(w io.Writer) { printUser(w, user) })
		},
	}

	var displayName, bio, location string
	update := &cobra.Command{
		Use:   "update",
		Short: "Edit your display name, bio or location",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req client.UpdateProfileRequest
			flags := cmd.Flags()
			if flags.Changed("display-name") {
				req.DisplayName = &displayName
			}
			if flags.Changed("bio") {
				req.Bio = &bio
			}
			if flags.Changed("location") {
				req.Location = &location
			}
			if req.DisplayName == nil && req.Bio == nil && req.Location == nil {
				return fmt.Errorf("nothing to update: pass --display-name, --bio or --location")
			}

			user, err := c.client.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.emit(user, func(w io.Writer) {
				green.Fprintln(w, "Profile updated")
				printUser(w, user)
			})
		},
	}
	update.Flags().StringVar(&displayName, "display-name", "", "Display name")
	update.Flags().StringVar(&bio, "bio", "", "Short bio")
	update.Flags().StringVar(&location, "location", "", "Location")

	avatar := &cobra.Command{
		Use:   "avatar <image-file>",
		Short: "Upload a new avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			user, err := c.client.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return c.emit(user, func(w io.Writer) {
				green.Fprintf(w, "Avatar updated: %s\n", user.AvatarURL)
			})
		},
	}

	cmd.AddCommand(show, update, avatar)
	return cmd
}
