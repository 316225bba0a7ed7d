package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/editor"
	"github.com/akarlsen/kal/internal/tui"
)

var respondCmd = &cobra.Command{
	Use:   "respond <calendar> <event-id>",
	Short: "Answer an invitation",
	Long: `Answer an invitation: the reply goes to the organizer and your copy of
the event is updated. Without a decision flag an interactive picker opens.`,
	Args: cobra.ExactArgs(2),
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)

	respondCmd.Flags().Bool("accept", false, "Accept the invitation")
	respondCmd.Flags().Bool("decline", false, "Decline the invitation")
	respondCmd.Flags().Bool("tentative", false, "Respond tentatively")
}

func runRespond(cmd *cobra.Command, args []string) error {
	cal, err := findCalendar(args[0])
	if err != nil {
		return err
	}

	ev, err := store.GetEvent(cmd.Context(), cal.ID, args[1])
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	address, err := ownAddressOn(ev)
	if err != nil {
		return err
	}

	decision, picked, err := decisionFromFlags(cmd)
	if err != nil {
		return err
	}
	if !picked {
		return runDialog(tui.NewRespondModel(logger, store, notifier, cal, ev, address))
	}

	_, outcome, err := editor.RespondToInvitation(cmd.Context(), logger, store, notifier, cal, ev, address, decision)
	if err != nil {
		return err
	}
	for _, failure := range outcome.NotifyFailures {
		fmt.Printf("Warning: %v\n", failure)
	}
	fmt.Printf("Responded to '%s'\n", ev.Summary)
	return nil
}

func decisionFromFlags(cmd *cobra.Command) (core.AttendeeStatus, bool, error) {
	accept, _ := cmd.Flags().GetBool("accept")
	decline, _ := cmd.Flags().GetBool("decline")
	tentative, _ := cmd.Flags().GetBool("tentative")

	set := 0
	for _, b := range []bool{accept, decline, tentative} {
		if b {
			set++
		}
	}
	if set > 1 {
		return core.StatusNeedsAction, false, fmt.Errorf("pass at most one of --accept, --decline, --tentative")
	}

	switch {
	case accept:
		return core.StatusAccepted, true, nil
	case decline:
		return core.StatusDeclined, true, nil
	case tentative:
		return core.StatusTentative, true, nil
	}
	return core.StatusNeedsAction, false, nil
}

// ownAddressOn finds which of the user's addresses the invitation targets.
func ownAddressOn(ev *core.Event) (string, error) {
	for _, address := range userAddresses() {
		if ev.FindAttendee(address) >= 0 {
			return address, nil
		}
	}
	return "", fmt.Errorf("none of your addresses is on the guest list of '%s'", ev.Summary)
}
