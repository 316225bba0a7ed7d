package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage configuration profiles",
	Long: `Manage configuration profiles for different accounts.

Profiles allow you to quickly switch between calendar accounts, for
example a CalDAV work account and a personal Google account.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileSetDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSetDefault,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileSetDefaultCmd)

	profileAddCmd.Flags().String("provider", "", "Calendar provider (caldav or google)")
	profileAddCmd.Flags().String("endpoint", "", "CalDAV endpoint URL")
	profileAddCmd.Flags().String("username", "", "Account username")
	profileAddCmd.Flags().StringSlice("addresses", nil, "Mail addresses that count as you")
	profileAddCmd.Flags().String("credentials-file", "", "Path to Google credentials file")
	profileAddCmd.Flags().String("token-file", "", "Path to Google token file")
	profileAddCmd.Flags().String("outbox", "", "Notification spool directory")
	profileAddCmd.Flags().Int("days", 0, "Default number of days to list")
}

func runProfileList(cmd *cobra.Command, args []string) error {
	profiles := viper.GetStringMap("profiles")
	defaultProfile := viper.GetString("default_profile")

	if len(profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("\nAdd one with: kal profile add <name> --provider=caldav --endpoint=<url>")
		return nil
	}

	fmt.Println("Available profiles:")
	fmt.Println("─────────────────────────────────────────────────")
	for name := range profiles {
		marker := "  "
		if name == defaultProfile {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, name)
	}
	fmt.Println("─────────────────────────────────────────────────")
	if defaultProfile != "" {
		fmt.Printf("Default: %s\n", defaultProfile)
	}

	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	var profileName string
	if len(args) > 0 {
		profileName = args[0]
	} else {
		profileName = viper.GetString("default_profile")
		if profileName == "" {
			return fmt.Errorf("no profile specified and no default profile set")
		}
	}

	profileKey := "profiles." + profileName
	if !viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	settings := viper.GetStringMap(profileKey)

	fmt.Printf("Profile: %s\n", profileName)
	if profileName == viper.GetString("default_profile") {
		fmt.Println("(default)")
	}
	fmt.Println("─────────────────────────────────────────────────")
	for _, key := range []string{"provider", "endpoint", "username", "addresses", "credentials_file", "token_file", "outbox", "days", "calendars"} {
		if val, ok := settings[key]; ok {
			fmt.Printf("  %s: %v\n", key, val)
		}
	}

	return nil
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	profileKey := "profiles." + profileName
	if viper.IsSet(profileKey) {
		return fmt.Errorf("profile '%s' already exists", profileName)
	}

	settings := make(map[string]interface{})
	stringFlags := map[string]string{
		"provider":         "provider",
		"endpoint":         "endpoint",
		"username":         "username",
		"credentials-file": "credentials_file",
		"token-file":       "token_file",
		"outbox":           "outbox",
	}
	for flag, key := range stringFlags {
		if val, _ := cmd.Flags().GetString(flag); val != "" {
			settings[key] = val
		}
	}
	if val, _ := cmd.Flags().GetStringSlice("addresses"); len(val) > 0 {
		settings["addresses"] = val
	}
	if cmd.Flags().Changed("days") {
		val, _ := cmd.Flags().GetInt("days")
		settings["days"] = val
	}

	if err := saveProfileToConfig(profileName, settings); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Profile '%s' created\n", profileName)
	fmt.Printf("\nUse it with: kal -p %s\n", profileName)
	fmt.Printf("Set as default: kal profile default %s\n", profileName)

	return nil
}

func runProfileSetDefault(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	if !viper.IsSet("profiles." + profileName) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	if err := setDefaultProfileInConfig(profileName); err != nil {
		return fmt.Errorf("failed to set default profile: %w", err)
	}

	fmt.Printf("Default profile set to '%s'\n", profileName)
	return nil
}

// Config file manipulation functions

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kal", "config.yaml")
}

func readConfigFile() (map[string]interface{}, error) {
	data, err := os.ReadFile(getConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]interface{}), nil
		}
		return nil, err
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if config == nil {
		config = make(map[string]interface{})
	}
	return config, nil
}

func writeConfigFile(config map[string]interface{}) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o644)
}

func saveProfileToConfig(name string, settings map[string]interface{}) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}

	profiles, ok := config["profiles"].(map[string]interface{})
	if !ok {
		profiles = make(map[string]interface{})
	}
	profiles[name] = settings
	config["profiles"] = profiles

	return writeConfigFile(config)
}

func setDefaultProfileInConfig(name string) error {
	config, err := readConfigFile()
	if err != nil {
		return err
	}
	config["default_profile"] = name
	return writeConfigFile(config)
}
