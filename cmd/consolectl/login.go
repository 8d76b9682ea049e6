package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newLoginCmd() *cobra.Command {
	var username, password string
	var tokenOnly bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "authenticates with the identity provider through the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = a.v.GetString("password")
			}
			if username == "" || password == "" {
				return errors.New("--username and --password (or CONSOLECTL_PASSWORD) are required")
			}

			c, err := a.client()
			if err != nil {
				return err
			}

			reply, err := c.Authenticate(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if tokenOnly {
				if reply.Token() == "" {
					return errors.New("login reply carried no token")
				}
				fmt.Fprintln(a.out, reply.Token())
				return nil
			}
			fmt.Fprintln(a.out, string(reply.Raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", `account username`)
	cmd.Flags().StringVar(&password, "password", "", `account password`)
	cmd.Flags().BoolVar(&tokenOnly, "token-only", false, `print only the issued token`)
	return cmd
}
