package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akarlsen/kal/internal/domaincheck"
)

var domainCmd = &cobra.Command{
	Use:   "domain <domain>",
	Short: "Verify DNS setup for a custom mail domain",
	Long: `Walk through the DNS setup for using a custom mail domain.

Prints the records the domain must carry (ownership proof, MX, SPF and
DKIM), then checks them against DNS. With --wait the check repeats until
every record is in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runDomain,
}

func init() {
	rootCmd.AddCommand(domainCmd)

	domainCmd.Flags().String("mail-host", "", "MX target of the mail service (default from config)")
	domainCmd.Flags().String("dkim-selector", "kal", "DKIM selector of the mail service")
	domainCmd.Flags().Bool("wait", false, "Poll until the domain verifies")
	domainCmd.Flags().Duration("interval", 30*time.Second, "Poll interval with --wait")
}

func runDomain(cmd *cobra.Command, args []string) error {
	domain := args[0]

	mailHost, _ := cmd.Flags().GetString("mail-host")
	if mailHost == "" {
		mailHost = viper.GetString("mail_host")
	}
	if mailHost == "" {
		return fmt.Errorf("mail host not configured; pass --mail-host or set mail_host in the config")
	}
	selector, _ := cmd.Flags().GetString("dkim-selector")

	wizard := domaincheck.NewWizard(logger, domain, mailHost, selector, nil)

	fmt.Printf("DNS records for %s:\n", domain)
	fmt.Println("─────────────────────────────────────────────────")
	for _, rec := range wizard.Records() {
		fmt.Printf("  %-5s %s\n        %s\n        (%s)\n", rec.Kind, rec.Name, rec.Value, rec.Purpose)
	}
	fmt.Println("─────────────────────────────────────────────────")

	statuses, verified := wizard.Check(cmd.Context())
	printStatuses(statuses)
	if verified {
		fmt.Println("\nDomain verified ✓")
		return nil
	}

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return fmt.Errorf("domain %s is not fully verified yet", domain)
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	fmt.Printf("\nWaiting for DNS changes (checking every %s, ctrl+c to stop)...\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}

		statuses, verified = wizard.Check(cmd.Context())
		printStatuses(statuses)
		if verified {
			fmt.Println("\nDomain verified ✓")
			return nil
		}
	}
}

func printStatuses(statuses []domaincheck.Status) {
	fmt.Println()
	for _, st := range statuses {
		mark := "✗"
		if st.OK {
			mark = "✓"
		}
		fmt.Printf("  %s %-5s %s\n", mark, st.Record.Kind, st.Record.Name)
		if !st.OK && st.Err != nil {
			fmt.Printf("      lookup failed: %v\n", st.Err)
		} else if !st.OK && len(st.Found) > 0 {
			fmt.Printf("      found: %v\n", st.Found)
		}
	}
}
