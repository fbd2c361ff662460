package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgard/skillbot/internal/database"
)

const cliReference = "cli"

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust credit balances",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show <user_id>",
	Short: "Show a balance and its most recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(cmd.Context(), func(ctx context.Context, store database.Store) error {
			return showCredits(ctx, store, userID, limit)
		})
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant <user_id> <amount>",
	Short: "Add credits to an account; a negative amount takes them back",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount == 0 {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		return withStore(cmd.Context(), func(ctx context.Context, store database.Store) error {
			balance, err := store.Adjust(ctx, userID, amount, database.ReasonAdminGrant, cliReference)
			if err != nil {
				return fmt.Errorf("failed to grant credits: %w", err)
			}
			fmt.Printf("user %d: %+d credits, balance %d\n", userID, amount, balance)
			return nil
		})
	},
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage accounts exempt from charges",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <user_id>",
	Short: "Exempt an account from charges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWhitelist(cmd.Context(), args[0], true)
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <user_id>",
	Short: "Charge an account again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWhitelist(cmd.Context(), args[0], false)
	},
}

func init() {
	creditsShowCmd.Flags().Int("limit", 20, "Number of ledger entries to show")
	creditsCmd.AddCommand(creditsShowCmd, creditsGrantCmd)
	whitelistCmd.AddCommand(whitelistAddCmd, whitelistRemoveCmd)
	rootCmd.AddCommand(creditsCmd, whitelistCmd)
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

// withStore opens the configured database for the duration of fn.
func withStore(ctx context.Context, fn func(context.Context, database.Store) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	defer database.CloseDB(db)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return fn(ctx, database.NewStore(db, log))
}

func showCredits(ctx context.Context, store database.Store, userID int64, limit int) error {
	acc, err := store.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acc == nil {
		fmt.Printf("user %d has no account\n", userID)
		return nil
	}

	fmt.Printf("user %d (%s): balance %d, whitelisted %t\n", acc.UserID, acc.DisplayName, acc.Balance, acc.Whitelisted)

	entries, err := store.ListEntries(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("failed to list ledger entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDELTA\tBALANCE\tREASON\tREFERENCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%+d\t%d\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Delta, e.BalanceAfter, e.Reason, e.Reference)
	}
	return tw.Flush()
}

func setWhitelist(ctx context.Context, arg string, on bool) error {
	userID, err := parseUserID(arg)
	if err != nil {
		return err
	}
	return withStore(ctx, func(ctx context.Context, store database.Store) error {
		if err := store.SetWhitelisted(ctx, userID, on); err != nil {
			return fmt.Errorf("failed to update whitelist: %w", err)
		}
		fmt.Printf("user %d whitelisted: %t\n", userID, on)
		return nil
	})
}
