package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/config"
	v1 "github.com/shenikar/civic_reporting_system/internal/handler/http/v1"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"github.com/spf13/cobra"
)

var (
	accountName     string
	accountEmail    string
	accountPassword string

	tokenID   string
	tokenRole string
	tokenTTL  time.Duration
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserService(cmd.Context(), func(ctx context.Context, svc service.UserService) error {
			admin, err := svc.CreateAdmin(ctx, accountName, accountEmail, accountPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin created: %s\n", admin.ID)
			return nil
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage resident accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a resident account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUserService(cmd.Context(), func(ctx context.Context, svc service.UserService) error {
			user, err := svc.RegisterUser(ctx, accountName, accountEmail, accountPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user created: %s\n", user.ID)
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Bearer tokens for development",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a bearer token with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := bootstrap()
		if err != nil {
			return err
		}
		id, err := uuid.Parse(tokenID)
		if err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		if tokenRole != v1.RoleUser && tokenRole != v1.RoleAdmin {
			return fmt.Errorf("--role must be %s or %s", v1.RoleUser, v1.RoleAdmin)
		}

		token, err := v1.SignToken(cfg.JWTSecret, id, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{adminCreateCmd, userCreateCmd} {
		c.Flags().StringVar(&accountName, "name", "", "Full name")
		c.Flags().StringVar(&accountEmail, "email", "", "Email address")
		c.Flags().StringVar(&accountPassword, "password", "", "Password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	adminCmd.AddCommand(adminCreateCmd)
	userCmd.AddCommand(userCreateCmd)

	tokenIssueCmd.Flags().StringVar(&tokenID, "id", "", "User or admin ID")
	tokenIssueCmd.Flags().StringVar(&tokenRole, "role", v1.RoleUser, "Role: user or admin")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenIssueCmd.MarkFlagRequired("id")
	tokenCmd.AddCommand(tokenIssueCmd)
}

// withUserService открывает хранилище и передает сервис пользователей в fn
func withUserService(ctx context.Context, fn func(context.Context, service.UserService) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.StoreDriverMemory {
		return fmt.Errorf("accounts cannot be created in the in-memory store")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	return fn(ctx, service.NewUserService(st.users, nil, log))
}
