package main

import (
	"fmt"
	"time"

	"github.com/maxaizer/job-intake/internal/config"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/repositories"
	"github.com/maxaizer/job-intake/internal/server"
	"github.com/spf13/cobra"
)

var (
	userName    string
	userPlan    string
	userCredits int
	tokenUser   string
	tokenTTL    time.Duration
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users for local development",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user with a starting credit balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		dbContext, err := openDatabase(cfg.DB)
		if err != nil {
			return err
		}
		defer dbContext.Close()

		user, err := models.NewUser(userName, userPlan, userCredits)
		if err != nil {
			return err
		}
		if err = repositories.NewUsersRepository(dbContext.DB).Add(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nlegacy id: %d\ncredits: %d\n", user.ID, user.LegacyID, user.Plan.RemainingJobs)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a session token for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		token, err := server.NewSessionVerifier(cfg.Server.JWTSecret).Sign(tokenUser, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userPlan, "plan", "free", "plan type")
	userAddCmd.Flags().IntVar(&userCredits, "credits", 100, "starting credit balance")
	_ = userAddCmd.MarkFlagRequired("name")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id, either namespace")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	userCmd.AddCommand(userAddCmd, tokenCmd)
	rootCmd.AddCommand(userCmd)
}
