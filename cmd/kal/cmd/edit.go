package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/editor"
	"github.com/akarlsen/kal/internal/tui"
)

var editCmd = &cobra.Command{
	Use:   "edit <calendar> <event-id>",
	Short: "Edit an event in the interactive dialog",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit,
}

var newCmd = &cobra.Command{
	Use:   "new [date]",
	Short: "Create a new event",
	Long: `Create a new event in the interactive dialog.

The event starts at the next full hour of the given date (default today)
and is one hour long until you change it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNew,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <calendar> <event-id>",
	Short: "Delete an event, cancelling its invitations",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(deleteCmd)

	newCmd.Flags().StringP("calendar", "C", "", "Target calendar (default: first owned calendar)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	cal, err := findCalendar(args[0])
	if err != nil {
		return err
	}

	ev, err := store.GetEvent(cmd.Context(), cal.ID, args[1])
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	ed := editor.New(logger, store, notifier, cal, ev, userAddresses())
	return runDialog(tui.NewEditorModel(ed))
}

func runNew(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if len(args) > 0 {
		var err error
		date, err = parseDate(args[0], date)
		if err != nil {
			return err
		}
	}

	cal, err := targetCalendar(cmd)
	if err != nil {
		return err
	}

	ed := editor.NewForDate(logger, store, notifier, cal, date, userAddresses())
	return runDialog(tui.NewEditorModel(ed))
}

func runDelete(cmd *cobra.Command, args []string) error {
	cal, err := findCalendar(args[0])
	if err != nil {
		return err
	}

	ev, err := store.GetEvent(cmd.Context(), cal.ID, args[1])
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	ed := editor.New(logger, store, notifier, cal, ev, userAddresses())
	outcome, err := ed.Delete(cmd.Context())
	if err != nil {
		return err
	}
	if !outcome.Saved {
		return fmt.Errorf("you cannot delete events on this calendar")
	}
	for _, failure := range outcome.NotifyFailures {
		fmt.Printf("Warning: %v\n", failure)
	}
	fmt.Printf("Deleted '%s'\n", ev.Summary)
	return nil
}

// targetCalendar resolves the calendar for a new event: the --calendar flag
// if given, otherwise the first owned calendar.
func targetCalendar(cmd *cobra.Command) (core.Calendar, error) {
	if ref, _ := cmd.Flags().GetString("calendar"); ref != "" {
		return findCalendar(ref)
	}
	for _, cal := range store.Calendars() {
		if cal.Owned {
			return cal, nil
		}
	}
	return core.Calendar{}, fmt.Errorf("no owned calendar found; pass one with --calendar")
}

func runDialog(model tea.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running dialog: %w", err)
	}
	return nil
}
