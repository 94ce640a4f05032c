package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/ledgerguard/ledgerguard/internal/workflow"
	"github.com/spf13/cobra"
)

func addReviewerFlags(cmd *cobra.Command) {
	cmd.Flags().String("as", "", "Name of the acting reviewer")
	cmd.Flags().String("role", "", "Role of the acting reviewer (checker1-checker4, cfo)")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("role")
}

func reviewerFromFlags(cmd *cobra.Command) (service.Actor, error) {
	name, _ := cmd.Flags().GetString("as")
	role, _ := cmd.Flags().GetString("role")
	return resolveActor(name, role)
}

// lookupAccount resolves an argument that may be an account id or a GL
// account number.
func lookupAccount(ctx context.Context, store service.AccountStore, arg string) (*model.Account, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if account, idErr := store.GetAccountByID(ctx, id); idErr == nil {
			return account, nil
		}
	}
	return store.GetAccountByNumber(ctx, arg)
}

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <account>",
		Short: "Approve an account at the caller's review stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			actor, err := reviewerFromFlags(cmd)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account, err := lookupAccount(ctx, store, args[0])
			if err != nil {
				return err
			}

			updated, err := newMachine(store).Approve(ctx, account.ID, actor)
			if err != nil {
				return err
			}

			if updated.Finalized() {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Account %s finalized.", updated.AccountNumber)))
			} else {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Account %s advanced to %s.", updated.AccountNumber, *updated.CurrentStage)))
			}
			return nil
		},
	}
	addReviewerFlags(cmd)
	return cmd
}

func rejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <account>",
		Short: "Reject an account back to the start of the review pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			actor, err := reviewerFromFlags(cmd)
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account, err := lookupAccount(ctx, store, args[0])
			if err != nil {
				return err
			}

			updated, err := newMachine(store).Reject(ctx, account.ID, actor, reason)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatWarning(fmt.Sprintf("Account %s sent back to %s (mistakes: %d).",
				updated.AccountNumber, *updated.CurrentStage, updated.MistakeCount)))
			return nil
		},
	}
	addReviewerFlags(cmd)
	cmd.Flags().String("reason", "", "Reason for the rejection (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <account> <amount>",
		Short: "Apply a balance correction (final-authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			actor, err := reviewerFromFlags(cmd)
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")

			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: %q", common.ErrUnparsedAmount, args[1])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			account, err := lookupAccount(ctx, store, args[0])
			if err != nil {
				return err
			}

			updated, entry, err := newMachine(store).Correct(ctx, account.ID, actor, amount, reason)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Account %s corrected: %.2f → %.2f (impact %.2f, severity %s).",
				updated.AccountNumber, entry.BeforeAmount, entry.AfterAmount, entry.Impact,
				updated.ThresholdLevel)))
			return nil
		},
	}
	addReviewerFlags(cmd)
	cmd.Flags().String("reason", "", "Reason for the correction (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <account>",
		Short: "Edit reconciliation metadata without touching risk scores",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}
	addReviewerFlags(cmd)
	cmd.Flags().String("name", "", "Replace the account name")
	cmd.Flags().String("notes", "", "Replace the account notes")
	cmd.Flags().String("reconciliation-status", "", "Set the reconciliation status")
	cmd.Flags().String("confirmation-source", "", "Set the confirmation source")
	cmd.Flags().String("reviewer", "", "Set the assigned reviewer")
	cmd.Flags().String("checkpoint", "", "Set the reconciliation checkpoint")
	return cmd
}

func metadataUpdateFromFlags(cmd *cobra.Command) workflow.MetadataUpdate {
	get := func(flag string) *string {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		v, _ := cmd.Flags().GetString(flag)
		return &v
	}
	return workflow.MetadataUpdate{
		AccountName:          get("name"),
		Notes:                get("notes"),
		ReconciliationStatus: get("reconciliation-status"),
		ConfirmationSource:   get("confirmation-source"),
		Reviewer:             get("reviewer"),
		Checkpoint:           get("checkpoint"),
	}
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	actor, err := reviewerFromFlags(cmd)
	if err != nil {
		return err
	}

	updates := metadataUpdateFromFlags(cmd)

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	account, err := lookupAccount(ctx, store, args[0])
	if err != nil {
		return err
	}

	updated, err := newMachine(store).Edit(ctx, account.ID, actor, updates)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Account %s metadata updated.", updated.AccountNumber)))
	return nil
}
