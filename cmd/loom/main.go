// loom - conversational agent CLI
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tessellate-ai/loom/agent"
	"github.com/tessellate-ai/loom/app"
	"github.com/tessellate-ai/loom/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "Chat with the agent and manage its memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(chatCmd(), historyCmd(), toolsCmd(), prefsCmd(), purgeCmd())
	return root
}

// buildApp loads configuration and wires the application with quiet
// text logging, keeping command output clean.
func buildApp() (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	return app.Build(cfg, logger)
}

func chatCmd() *cobra.Command {
	var message, sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a message to the agent and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			session := agent.NewSession(sessionID)
			response, err := application.Agent.ProcessMessage(cmd.Context(), session, message)
			if err != nil {
				return err
			}
			fmt.Println(response)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "session id for conversation continuity")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func historyCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a digest of a session's recent conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Memory.Summarize(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "session id to summarize")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			for _, tool := range application.Tools.Available() {
				fmt.Printf("- %s: %s\n", tool.Name, tool.Description)
			}
			return nil
		},
	}
}

func prefsCmd() *cobra.Command {
	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write user preferences",
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a preference value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			value, found, err := application.Memory.GetPreference(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("preference %q not set", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a preference value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Memory.UpsertPreference(cmd.Context(), args[0], args[1])
		},
	}

	prefs.AddCommand(get, set)
	return prefs
}

func purgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete conversation turns older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			removed, err := application.Memory.PurgeOlderThan(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d turns older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "retention window in days")
	return cmd
}
