// ABOUTME: "snapboard gallery": inspect gallery users and saved photos, and issue or rotate user tokens.
// ABOUTME: Tables render with uitable and fatih/color like the rest of the CLI output.
package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/2389-research/snapboard/gallery"
)

func newGalleryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Manage gallery users and saved photos",
	}
	open := func() (*gallery.Store, error) {
		cfg, err := a.config()
		if err != nil {
			return nil, err
		}
		return gallery.Open(cfg.Gallery)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "users",
		Short: "List gallery users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			users, err := store.Users()
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls <user>",
		Short: "List a user's saved photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			user, err := findUser(store, args[0])
			if err != nil {
				return err
			}
			photos, err := store.ListPhotos(user.ID)
			if err != nil {
				return err
			}
			printPhotos(cmd.OutOrStdout(), photos)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "token <user>",
		Short: "Create a user, or rotate an existing user's token, and print the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			_, token, err := store.EnsureUser(args[0])
			if err != nil {
				return err
			}
			if token == "" {
				if token, err = store.RotateToken(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	return cmd
}

func findUser(store *gallery.Store, name string) (gallery.User, error) {
	users, err := store.Users()
	if err != nil {
		return gallery.User{}, err
	}
	for _, u := range users {
		if u.Name == name {
			return u, nil
		}
	}
	return gallery.User{}, errors.New("no gallery user named " + strconv.Quote(name))
}

func printUsers(w io.Writer, users []gallery.User) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("NAME"), bold.Sprint("ID"), bold.Sprint("CREATED"))
	for _, u := range users {
		tbl.AddRow(u.Name, u.ID.String(), u.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func printPhotos(w io.Writer, photos []gallery.Photo) {
	bold := color.New(color.Bold)
	shared := color.New(color.FgGreen)
	edited := color.New(color.FgYellow)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("FRAME"), bold.Sprint("FILTER"), bold.Sprint("CAPTION"), bold.Sprint("SHARED"), bold.Sprint("SAVED"))
	for _, p := range photos {
		filter := "normal"
		if p.Filter != nil {
			filter = *p.Filter
		}
		caption := ""
		if p.Caption != nil {
			caption = *p.Caption
		}
		if p.Provenance != nil {
			caption = edited.Sprint("✎ ") + caption
		}
		public := "no"
		if p.Public {
			public = shared.Sprint("yes")
		}
		tbl.AddRow(p.ID.String(), p.Frame, filter, caption, public, p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(w, tbl)
}
