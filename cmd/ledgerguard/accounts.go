package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/cli"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts in the review snapshot",
		RunE:  runAccounts,
	}

	cmd.Flags().String("stage", "", "Only accounts at this review stage (checker1-checker4, cfo)")
	cmd.Flags().String("status", "", "Only accounts with this review status")
	cmd.Flags().String("threshold", "", "Only accounts in this severity bucket (critical, medium, low)")
	cmd.Flags().String("department", "", "Only accounts assigned to this department id")
	cmd.Flags().Bool("by-priority", false, "Sort by priority score instead of account id")

	return cmd
}

func runAccounts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	stageFilter, _ := cmd.Flags().GetString("stage")
	statusFilter, _ := cmd.Flags().GetString("status")
	thresholdFilter, _ := cmd.Flags().GetString("threshold")
	deptFilter, _ := cmd.Flags().GetString("department")
	byPriority, _ := cmd.Flags().GetBool("by-priority")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	accounts, err := store.Load(ctx)
	if err != nil {
		return err
	}

	filtered := accounts[:0:0]
	for _, a := range accounts {
		if stageFilter != "" {
			stage, ok := model.ParseStage(stageFilter)
			if !ok || a.CurrentStage == nil || *a.CurrentStage != stage {
				continue
			}
		}
		if statusFilter != "" && !strings.EqualFold(string(a.ReviewStatus), statusFilter) {
			continue
		}
		if thresholdFilter != "" && !strings.EqualFold(string(a.ThresholdLevel), thresholdFilter) {
			continue
		}
		if deptFilter != "" && !strings.EqualFold(a.DepartmentID, deptFilter) {
			continue
		}
		filtered = append(filtered, a)
	}

	if byPriority {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].PriorityScore > filtered[j].PriorityScore
		})
	}

	if len(filtered) == 0 {
		fmt.Println(cli.FormatInfo("No accounts match."))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Accounts (%d)", len(filtered))))
	header := fmt.Sprintf("%-5s %-10s %-30s %-20s %14s %-9s %-9s %-10s %8s",
		"ID", "Number", "Name", "Department", "Balance", "Severity", "Flag", "Stage", "Priority")
	fmt.Println(cli.TableHeaderStyle.Render(header))
	for _, a := range filtered {
		stage := "—"
		if a.CurrentStage != nil {
			stage = string(*a.CurrentStage)
		}
		fmt.Printf("%-5d %-10s %-30s %-20s %14.2f %-9s %-9s %-10s %8.2f\n",
			a.ID, a.AccountNumber, truncate(a.AccountName, 30), truncate(a.DepartmentName, 20),
			a.NormalizedBalance, cli.FormatThreshold(a.ThresholdLevel), cli.FormatFlag(a.FlagStatus),
			stage, a.PriorityScore)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
