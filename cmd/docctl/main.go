package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docchat-backend/internal/client"
)

const defaultAPIURL = "http://localhost:8080/api"

type globalFlags struct {
	apiURL string
	token  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(defaultMaintenance)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(maint maintenanceFactory) *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "docctl",
		Short: "Document backend operator CLI",
		Long: `docctl uploads and inspects documents through the HTTP API, watches
extraction until it settles, and runs maintenance against the database.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&flags.apiURL, "api", envOr("DOCCTL_API_URL", defaultAPIURL), "API base URL including /api")
	cmd.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("DOCCTL_TOKEN"), "Bearer token (or DOCCTL_TOKEN)")
	cmd.AddCommand(
		newLoginCmd(flags),
		newUploadCmd(flags),
		newListCmd(flags),
		newGetCmd(flags),
		newDeleteCmd(flags),
		newWatchCmd(flags),
		newSweepCmd(maint),
	)
	return cmd
}

func (f *globalFlags) client() *client.Client {
	return client.New(f.apiURL, f.token)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
