package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/captioner/internal/service"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash to use as API_TOKEN_HASH",
	Long:  `Hashes the given API token. Without an argument a random token is generated and printed with its hash.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			generated, err := service.GenerateToken()
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			token = generated
			fmt.Fprintf(cmd.OutOrStdout(), "API token: %s\n", token)
		}

		hash, err := service.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "API_TOKEN_HASH=%s\n", hash)
		return nil
	},
}
