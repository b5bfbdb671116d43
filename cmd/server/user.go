package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"container-dispatch/core/dispatch"
	"container-dispatch/core/session"
)

func userCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd(configPath))
	return cmd
}

func userCreateCmd(configPath *string) *cobra.Command {
	var in dispatch.NewUser

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, typically the first admin",
		Example: `  dispatch user create --username alice --email alice@example.com \
    --password secret --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			users := dispatch.NewUserService(db, logger)
			user, err := users.CreateUser(cmd.Context(), session.System, in)
			if err != nil {
				return err
			}

			fmt.Printf("%s created %s %s (%s)\n",
				color.New(color.FgGreen).Sprint("✓"),
				user.Role,
				color.New(color.Bold).Sprint(user.Username),
				user.ID,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Role, "role", "admin", "admin, dispatcher or driver")
	cmd.Flags().StringVar(&in.UserMainID, "user-main-id", "", "external driver code")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
