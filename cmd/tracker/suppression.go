package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/service/suppression"
)

func init() {
	suppressionCommand := &cobra.Command{
		Use:   "suppression",
		Short: "Inspect an address' bounce and complaint history",
	}
	rootCommand.AddCommand(suppressionCommand)

	var providerName string

	checkCommand := &cobra.Command{
		Use:   "check [email]",
		Short: "Report whether sends to an address would be suppressed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			v := a.validator()
			reason, err := v.Reason(ctx, args[0], domain.Provider(providerName))
			if err != nil {
				return err
			}
			fmt.Println(describeVerdict(args[0], v.Policy(), string(reason)))
			return nil
		},
	}
	checkCommand.Flags().StringVarP(&providerName, "provider", "p", "", "limit history to one provider")
	suppressionCommand.AddCommand(checkCommand)

	summaryCommand := &cobra.Command{
		Use:   "summary [email]",
		Short: "Print bounce and complaint counts for an address as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.validator().Summary(ctx, args[0], domain.Provider(providerName))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	summaryCommand.Flags().StringVarP(&providerName, "provider", "p", "", "limit history to one provider")
	suppressionCommand.AddCommand(summaryCommand)
}

// describeVerdict formats the check result together with the active policy.
func describeVerdict(email string, policy suppression.Policy, reason string) string {
	active := fmt.Sprintf("skip_bounced=%t, skip_complained=%t", policy.SkipBounced, policy.SkipComplained)
	switch {
	case !policy.Enabled():
		return fmt.Sprintf("%s may be sent to (suppression disabled: %s)", email, active)
	case reason == "":
		return fmt.Sprintf("%s may be sent to (policy: %s)", email, active)
	}
	return fmt.Sprintf("%s is suppressed: %s (policy: %s)", email, reason, active)
}
