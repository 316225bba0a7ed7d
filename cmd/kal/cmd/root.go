package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akarlsen/kal/internal/adapter/caldav"
	"github.com/akarlsen/kal/internal/adapter/google"
	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/notify"
)

// CalendarStore extends core.Storage with login and calendar discovery.
// Both the CalDAV and the Google adapter implement it.
type CalendarStore interface {
	core.Storage
	Login(ctx context.Context) error
	Calendars() []core.Calendar
}

var (
	cfgFile string
	profile string

	logger   *slog.Logger
	store    CalendarStore
	notifier *notify.Service
)

var rootCmd = &cobra.Command{
	Use:   "kal",
	Short: "A terminal calendar client for your mail account",
	Long: `kal is a terminal client for the calendar behind a mail account.

It lists your agenda, edits events with proper invitation handling,
answers invitations, and walks you through custom mail domain setup.`,
	PersistentPreRunE: initStore,
	RunE:              runAgenda,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/kal/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "config profile to use (e.g., work, personal)")

	rootCmd.PersistentFlags().IntP("days", "d", 7, "Number of days to list (ignored if --from/--to specified)")
	rootCmd.PersistentFlags().String("from", "", "Start date (YYYY-MM-DD, 'today', 'tomorrow', weekday names)")
	rootCmd.PersistentFlags().String("to", "", "End date (YYYY-MM-DD, 'today', 'tomorrow', weekday names)")
	rootCmd.PersistentFlags().StringP("calendars", "c", "", "Comma-separated list of calendar names to filter")

	viper.BindPFlag("days", rootCmd.PersistentFlags().Lookup("days"))
	viper.BindPFlag("from", rootCmd.PersistentFlags().Lookup("from"))
	viper.BindPFlag("to", rootCmd.PersistentFlags().Lookup("to"))
	viper.BindPFlag("calendars", rootCmd.PersistentFlags().Lookup("calendars"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "kal")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KAL")
	viper.AutomaticEnv()

	viper.SetDefault("provider", "caldav")
	viper.SetDefault("credentials_file", "credentials.json")
	viper.SetDefault("token_file", "token.json")
	viper.SetDefault("outbox", "~/.local/share/kal/outbox")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("days", 7)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	applyProfile()

	logger = setupLogger(viper.GetString("log_level"))
}

// applyProfile merges profile-specific settings over defaults.
func applyProfile() {
	activeProfile := profile
	if activeProfile == "" {
		activeProfile = viper.GetString("default_profile")
	}
	if activeProfile == "" {
		return
	}

	profileKey := "profiles." + activeProfile
	if !viper.IsSet(profileKey) {
		fmt.Fprintf(os.Stderr, "Warning: profile '%s' not found in config\n", activeProfile)
		return
	}

	fmt.Fprintf(os.Stderr, "Using profile: %s\n", activeProfile)

	settings := []string{
		"provider",
		"endpoint",
		"username",
		"password",
		"addresses",
		"credentials_file",
		"token_file",
		"outbox",
		"days",
		"from",
		"to",
		"calendars",
	}

	// Override each setting if present in profile, but only if the user
	// hasn't explicitly set it via CLI flag.
	for _, key := range settings {
		profileSettingKey := profileKey + "." + key
		if viper.IsSet(profileSettingKey) && !isFlagExplicitlySet(key) {
			viper.Set(key, viper.Get(profileSettingKey))
		}
	}
}

func isFlagExplicitlySet(viperKey string) bool {
	flagName := strings.ReplaceAll(viperKey, "_", "-")
	f := rootCmd.PersistentFlags().Lookup(flagName)

	return f != nil && f.Changed
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func initStore(cmd *cobra.Command, args []string) error {
	// Skip store init for commands that don't talk to the calendar
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "auth" ||
		cmd.Name() == "domain" || cmd.Name() == "profile" ||
		cmd.Parent() != nil && cmd.Parent().Name() == "profile" {
		return nil
	}

	provider := viper.GetString("provider")
	switch provider {
	case "caldav":
		endpoint := viper.GetString("endpoint")
		if endpoint == "" {
			return fmt.Errorf("endpoint not configured for CalDAV provider\n\nAdd it to your config:\n  endpoint: \"https://dav.example.org/\"")
		}
		adapter, err := caldav.New(logger, endpoint, viper.GetString("username"), viper.GetString("password"))
		if err != nil {
			return err
		}
		store = adapter
	case "google":
		credsFile := expandPath(viper.GetString("credentials_file"))
		tokenFile := expandPath(viper.GetString("token_file"))
		if _, err := os.Stat(credsFile); os.IsNotExist(err) {
			return fmt.Errorf("credentials file not found: %s", credsFile)
		}
		if _, err := os.Stat(tokenFile); os.IsNotExist(err) {
			return fmt.Errorf("token file not found: %s\n\nRun 'kal auth' to authenticate", tokenFile)
		}
		store = google.New(logger, credsFile, tokenFile)
	default:
		return fmt.Errorf("unknown provider: %s (supported: caldav, google)", provider)
	}

	if err := store.Login(cmd.Context()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	mailer, err := notify.NewOutboxMailer(logger, expandPath(viper.GetString("outbox")))
	if err != nil {
		return err
	}
	notifier = notify.NewService(logger, mailer)

	return nil
}

// userAddresses returns all addresses that count as the user: the account
// address plus configured aliases.
func userAddresses() []string {
	addresses := viper.GetStringSlice("addresses")
	if username := viper.GetString("username"); username != "" && strings.Contains(username, "@") {
		addresses = append(addresses, username)
	}
	return addresses
}

func runAgenda(cmd *cobra.Command, args []string) error {
	now := time.Now()
	var start, end time.Time

	fromStr := viper.GetString("from")
	toStr := viper.GetString("to")

	if fromStr != "" || toStr != "" {
		if fromStr != "" {
			var err error
			start, err = parseDate(fromStr, now)
			if err != nil {
				return err
			}
		} else {
			start = now
		}

		if toStr != "" {
			var err error
			end, err = parseDate(toStr, now)
			if err != nil {
				return err
			}
			// End of day
			end = end.Add(24*time.Hour - time.Second)
		} else {
			days := viper.GetInt("days")
			end = start.Add(time.Duration(days) * 24 * time.Hour)
		}
	} else {
		days := viper.GetInt("days")
		start = now
		end = now.Add(time.Duration(days) * 24 * time.Hour)
	}

	filter := core.EventFilter{Start: start, End: end}
	if calendars := viper.GetString("calendars"); calendars != "" {
		ids := resolveCalendarNames(strings.Split(calendars, ","), store.Calendars())
		if len(ids) == 0 {
			return fmt.Errorf("no matching calendars found for: %s\nUse 'kal calendars' to see available calendars", calendars)
		}
		filter.CalendarIDs = ids
	}

	events, err := store.ListEvents(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	fmt.Printf("Events from %s to %s:\n", start.Format("Jan 2"), end.Format("Jan 2"))
	fmt.Println("─────────────────────────────────────────────────")

	if len(events) == 0 {
		fmt.Println("No upcoming events found.")
		return nil
	}

	for _, ev := range events {
		printEvent(ev)
	}

	fmt.Println("─────────────────────────────────────────────────")
	fmt.Printf("Total: %d events\n", len(events))

	return nil
}

func printEvent(ev *core.Event) {
	fmt.Println()
	fmt.Printf("  %s\n", ev.Summary)
	fmt.Printf("  When:     %s\n", formatEventTime(ev))
	if ev.Location != "" {
		fmt.Printf("  Location: %s\n", ev.Location)
	}
	if ev.Organizer != "" {
		fmt.Printf("  From:     %s\n", ev.Organizer)
	}
	if len(ev.Attendees) > 0 {
		fmt.Printf("  Guests:   %d\n", len(ev.Attendees))
	}
	if ev.Repeat != nil {
		fmt.Printf("  Repeats:  %s\n", ev.Repeat.RRule)
	}
	fmt.Printf("  ID:       %s\n", ev.ID)
}

func formatEventTime(ev *core.Event) string {
	start := ev.Start.In(ev.Zone())
	end := ev.End.In(ev.Zone())

	if ev.AllDay {
		if start.Day() == end.Day() || end.Sub(start) <= 24*time.Hour {
			return start.Format("Mon, Jan 2") + " (all day)"
		}
		return fmt.Sprintf("%s - %s (all day)", start.Format("Mon, Jan 2"), end.Add(-24*time.Hour).Format("Mon, Jan 2"))
	}

	if start.Day() == end.Day() {
		return fmt.Sprintf("%s, %s - %s", start.Format("Mon, Jan 2"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon, Jan 2 15:04"), end.Format("Mon, Jan 2 15:04"))
}

// parseDate parses a date string in various formats.
// Supports: YYYY-MM-DD, "today", "tomorrow", "yesterday", weekday names.
func parseDate(s string, defaultTime time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}

	// Handle "next <weekday>"
	dayName := strings.TrimPrefix(s, "next ")
	if wd, ok := weekdays[dayName]; ok {
		daysUntil := int(wd - today.Weekday())
		if daysUntil <= 0 {
			daysUntil += 7
		}
		return today.AddDate(0, 0, daysUntil), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("01-02", s, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0), nil
	}

	return defaultTime, fmt.Errorf("unable to parse date: %s (use YYYY-MM-DD, 'today', 'tomorrow', or weekday names)", s)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// resolveCalendarNames maps names (or name substrings) onto calendar IDs.
func resolveCalendarNames(names []string, calendars []core.Calendar) []string {
	var ids []string

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		nameLower := strings.ToLower(name)

		for _, cal := range calendars {
			if cal.ID == name || strings.Contains(strings.ToLower(cal.Name), nameLower) {
				ids = append(ids, cal.ID)
				break
			}
		}
	}

	return ids
}

// findCalendar resolves one calendar by ID or name match.
func findCalendar(ref string) (core.Calendar, error) {
	for _, cal := range store.Calendars() {
		if cal.ID == ref || strings.EqualFold(cal.Name, ref) {
			return cal, nil
		}
	}
	ids := resolveCalendarNames([]string{ref}, store.Calendars())
	if len(ids) == 1 {
		for _, cal := range store.Calendars() {
			if cal.ID == ids[0] {
				return cal, nil
			}
		}
	}
	return core.Calendar{}, fmt.Errorf("calendar '%s' not found\nUse 'kal calendars' to see available calendars", ref)
}
