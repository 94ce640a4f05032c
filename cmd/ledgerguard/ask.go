package main

import (
	"fmt"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/assistant"
	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>...",
		Short: "Ask a question about the review snapshot",
		Long: `Answer natural-language questions about the current snapshot, such as
"which accounts are critical" or "balances above 5 million". Common
question shapes are answered locally; configure assistant.api_key to
route anything else to the hosted completion service.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	accounts, err := store.Load(ctx)
	if err != nil {
		return err
	}

	var remote assistant.RemoteClient
	if apiKey := viper.GetString("assistant.api_key"); apiKey != "" {
		remote, err = assistant.NewRemoteClient(assistant.RemoteConfig{
			APIKey: apiKey,
			Model:  viper.GetString("assistant.model"),
		})
		if err != nil {
			return err
		}
	}

	answer, err := assistant.New(remote).Ask(ctx, question, accounts)
	if err != nil {
		return err
	}

	if answer.Remote {
		fmt.Println(cli.SubtleStyle.Render("(answered by the hosted assistant)"))
	}
	fmt.Println(answer.Text)
	return nil
}
