package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List available calendars",
	RunE:  runCalendars,
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	calendars := store.Calendars()
	if len(calendars) == 0 {
		fmt.Println("No calendars found.")
		return nil
	}

	fmt.Println("Available calendars:")
	fmt.Println("─────────────────────────────────────────────────")
	for _, cal := range calendars {
		access := "read-only"
		switch {
		case cal.Owned:
			access = "owner"
		case cal.Writable:
			access = "read-write"
		}
		fmt.Printf("  %s (%s)\n    %s\n", cal.Name, access, cal.ID)
	}

	return nil
}
