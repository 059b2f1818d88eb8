package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docchat-backend/internal/client"
	"docchat-backend/internal/poller"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password and print the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := flags.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUploadCmd(flags *globalFlags) *cobra.Command {
	var wait bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			c := flags.client()
			doc, err := c.Upload(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", doc.ID, doc.Status, doc.Name)
			if !wait {
				return nil
			}
			return watch(cmd, c, interval)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Watch until extraction settles")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "Refresh interval while waiting")
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := flags.client().List(cmd.Context())
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), docs)
			return nil
		},
	}
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one document and its extracted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := flags.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !textOnly {
				printTable(out, []client.Document{doc})
			}
			if doc.ExtractedText != nil {
				if !textOnly {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, *doc.ExtractedText)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print only the extracted text")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print status changes until no document is processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, flags.client(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "Refresh interval")
	return cmd
}

func watch(cmd *cobra.Command, c *client.Client, interval time.Duration) error {
	out := cmd.OutOrStdout()
	seen := make(map[string]string)
	p := &poller.Poller{
		Source:   c,
		Interval: interval,
		OnUpdate: func(docs []client.Document) {
			for _, d := range docs {
				if prev, ok := seen[d.ID]; !ok || prev != d.Status {
					fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, d.Status, d.Name)
					seen[d.ID] = d.Status
				}
			}
		},
	}
	_, err := p.Run(cmd.Context())
	return err
}

func printTable(w io.Writer, docs []client.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPAGES\tSIZE\tCREATED")
	for _, d := range docs {
		pages := "-"
		if d.PageCount != nil {
			pages = fmt.Sprint(*d.PageCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.Status, pages, d.FileSize, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
