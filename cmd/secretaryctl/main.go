package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	rootCmd = &cobra.Command{
		Use:   "secretaryctl",
		Short: "Operator CLI for the secretary backend",
		Long: "Operator CLI for the secretary backend. HTTP commands talk to a\n" +
			"running service via --api; store commands read the LINE_SECRETARY_*\n" +
			"environment and connect to the database directly.",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Service base URL")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(apiFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(healthCmd)

	triggerCmd := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Run a worker job immediately (reminder, daily-digest, usage-reset, cleanup)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(apiFlag, args[0], os.Stdout)
		},
	}
	rootCmd.AddCommand(triggerCmd)

	userCmd := &cobra.Command{Use: "user", Short: "Inspect users in the store"}
	userGetCmd := &cobra.Command{
		Use:   "get <userId>",
		Short: "Print one user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserGet(cmd.Context(), args[0], os.Stdout)
		},
	}
	userListCmd := &cobra.Command{
		Use:   "list",
		Short: "List users as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runUserList(cmd.Context(), limit, os.Stdout)
		},
	}
	userListCmd.Flags().IntP("limit", "n", 50, "Maximum users to list")
	userCmd.AddCommand(userGetCmd, userListCmd)
	rootCmd.AddCommand(userCmd)

	warikanCmd := &cobra.Command{Use: "warikan", Short: "Inspect splits in the store"}
	warikanListCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's splits as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return runWarikanList(cmd.Context(), userID, status, limit, os.Stdout)
		},
	}
	warikanListCmd.Flags().StringP("user", "u", "", "User ID (required)")
	warikanListCmd.Flags().StringP("status", "s", "active", "Status filter (active, settled, cancelled)")
	warikanListCmd.Flags().IntP("limit", "n", 20, "Maximum splits to list")
	warikanCmd.AddCommand(warikanListCmd)
	rootCmd.AddCommand(warikanCmd)

	scheduleCmd := &cobra.Command{Use: "schedule", Short: "Inspect schedules in the store"}
	scheduleListCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's schedules as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			limit, _ := cmd.Flags().GetInt("limit")
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return runScheduleList(cmd.Context(), userID, limit, os.Stdout)
		},
	}
	scheduleListCmd.Flags().StringP("user", "u", "", "User ID (required)")
	scheduleListCmd.Flags().IntP("limit", "n", 50, "Maximum schedules to list")
	scheduleCmd.AddCommand(scheduleListCmd)
	rootCmd.AddCommand(scheduleCmd)

	usageResetCmd := &cobra.Command{
		Use:   "usage-reset",
		Short: "Zero usage counters directly in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runUsageReset(cmd.Context(), limit, os.Stdout)
		},
	}
	usageResetCmd.Flags().IntP("limit", "n", 50000, "Maximum users to reset")
	rootCmd.AddCommand(usageResetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
