package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessro/tunes/internal/config"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/wizard"
)

const configHeader = "# Tunes Configuration\n\n"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing tunes configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, after environment overrides and defaults.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration paths",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. The result is validated before it is saved.

Examples:
  tunes config set backend.url https://abc.supabase.co
  tunes config set player.volume 60
  tunes config set idle.threshold 120000
  tunes config set idle.events keypress,mousedown
  tunes config set payment.currency KES`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetMethodCmd = &cobra.Command{
	Use:   "set-method",
	Short: "Interactively select the default payment method",
	RunE:  runConfigSetMethod,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetMethodCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return printJSON(cfg)
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	loaded := cfgFile
	if loaded == "" {
		loaded = config.FindConfigFile()
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"config": getConfigPath(),
			"loaded": loaded,
			"dir":    config.Dir(),
			"store":  storePath(),
			"socket": socketPath(),
		})
	}

	t := NewTable("What", "Path")
	t.AppendRow([]any{"config", getConfigPath()})
	if loaded == "" {
		t.AppendRow([]any{"loaded", dimColor.Sprint("(none, using defaults)")})
	} else {
		t.AppendRow([]any{"loaded", loaded})
	}
	t.AppendRow([]any{"store", storePath()})
	t.AppendRow([]any{"socket", socketPath()})
	t.Render()
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return tuneserrors.WithSuggestion(
			fmt.Errorf("%w: %s", tuneserrors.ErrConfigNotFound, configPath),
			"Run 'tunes config init' first")
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := writeConfig(configPath, config.Default()); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}

	fmt.Printf("Created config file: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set backend.url and backend.anon_key, or TUNES_BACKEND_URL and TUNES_BACKEND_ANON_KEY")
	fmt.Println("  2. Run 'tunes auth login' to sign in")
	return nil
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".tunesrc"
	}

	return filepath.Join(home, ".tunesrc")
}

func writeConfig(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = "  "
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// The file can hold the database URL and anon key.
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var (
	intKeys = map[string]bool{
		"player.volume":            true,
		"player.memory_duration":   true,
		"player.progress_interval": true,
		"player.sample_rate":       true,
		"player.max_media_bytes":   true,
		"idle.threshold":           true,
		"idle.detection_interval":  true,
		"idle.max_activations":     true,
		"payment.poll_interval":    true,
		"payment.redirect_timeout": true,
		"payment.return_port":      true,
		"tui.refresh_interval":     true,
	}
	listKeys = map[string]bool{
		"idle.events": true,
	}
)

// parseConfigValue converts value to the TOML type key expects.
func parseConfigValue(key, value string) (any, error) {
	switch {
	case intKeys[key]:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value must be an integer for %s", key)
		}
		return n, nil
	case listKeys[key]:
		var items []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

// setConfigValue applies key=value to a raw TOML document and checks that
// the result still loads and validates.
func setConfigValue(raw map[string]any, key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return fmt.Errorf("invalid key format. Use 'section.key' (e.g., player.volume)")
	}
	section, field := parts[0], parts[1]

	typed, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}

	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		raw[section] = sectionMap
	}
	sectionMap[field] = typed

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var check config.Config
	meta, err := toml.Decode(buf.String(), &check)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %w", tuneserrors.ErrInvalidConfig, err)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	raw := map[string]any{}
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("failed to read config: %w", err)
	default:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := setConfigValue(raw, key, value); err != nil {
		return err
	}
	if err := writeConfig(configPath, raw); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigSetMethod(cmd *cobra.Command, args []string) error {
	if !newInteractive().CanInteract() {
		return tuneserrors.WithSuggestion(
			fmt.Errorf("%w: set-method needs a terminal", tuneserrors.ErrValidation),
			"Use 'tunes config set payment.default_method <method>' instead")
	}

	selected := payment.Method(cfg.Payment.DefaultMethod)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[payment.Method]().
				Title("Select default payment method").
				Description("Used by 'tunes pay create' when --method is not given").
				Options(wizard.MethodOptions()...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("selection cancelled: %w", err)
	}

	return runConfigSet(cmd, []string{"payment.default_method", string(selected)})
}
