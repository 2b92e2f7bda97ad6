package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "projectops"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage projectops configuration.

Running bare 'projectops config' is the same as 'projectops config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# projectops configuration
# See: projectops config show (for effective values and sources)

# State/data directory (default: ~/.config/projectops)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/projectops/projectops.db)
# db_path: {{ .DBPath }}

# API server port for 'projectops serve'
port: {{ .Port }}

# Built dashboard to serve next to the API (empty: API only)
web_dir: ""

# Dashboard login. Leave the password empty to refuse every login.
auth:
  username: "{{ .AuthUsername }}"
  password: ""
  # Session lifetime (default: 168h)
  session_ttl: {{ .SessionTTL }}

# Google Drive backup archive
archive:
  # Shared folder holding one subfolder per project
  root_folder: "{{ .RootFolder }}"
  # Per-operation timeout
  timeout: {{ .Timeout }}
  # Credentials, first match wins:
  #   credentials_file: service account or authorized user JSON
  #   connector_url + connector_token: external OAuth connector
  #   access_token: a fixed bearer token
  credentials_file: ""
  connector_url: ""
  connector_token: ""
  access_token: ""
`

type configTemplateData struct {
	StateDir     string
	DBPath       string
	Port         int
	AuthUsername string
	SessionTTL   string
	RootFolder   string
	Timeout      string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:     viper.GetString("state_dir"),
		DBPath:       viper.GetString("db_path"),
		Port:         viper.GetInt("port"),
		AuthUsername: viper.GetString("auth.username"),
		SessionTTL:   viper.GetDuration("auth.session_ttl").String(),
		RootFolder:   viper.GetString("archive.root_folder"),
		Timeout:      viper.GetDuration("archive.timeout").String(),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "PROJECTOPS_STATE_DIR"},
	{Key: "db_path", EnvVar: "PROJECTOPS_DB_PATH"},
	{Key: "port", EnvVar: "PROJECTOPS_PORT"},
	{Key: "web_dir", EnvVar: "PROJECTOPS_WEB_DIR"},
	{Key: "auth.username", EnvVar: "PROJECTOPS_AUTH_USERNAME"},
	{Key: "auth.password", EnvVar: "PROJECTOPS_AUTH_PASSWORD", Secret: true},
	{Key: "auth.session_ttl", EnvVar: "PROJECTOPS_AUTH_SESSION_TTL"},
	{Key: "archive.root_folder", EnvVar: "PROJECTOPS_ARCHIVE_ROOT_FOLDER"},
	{Key: "archive.timeout", EnvVar: "PROJECTOPS_ARCHIVE_TIMEOUT"},
	{Key: "archive.credentials_file", EnvVar: "PROJECTOPS_ARCHIVE_CREDENTIALS_FILE"},
	{Key: "archive.connector_url", EnvVar: "PROJECTOPS_ARCHIVE_CONNECTOR_URL"},
	{Key: "archive.connector_token", EnvVar: "PROJECTOPS_ARCHIVE_CONNECTOR_TOKEN", Secret: true},
	{Key: "archive.access_token", EnvVar: "PROJECTOPS_ARCHIVE_ACCESS_TOKEN", Secret: true},
}

// displayValue masks secrets so 'config show' is safe to paste.
func displayValue(k configKeyInfo) any {
	val := viper.Get(k.Key)
	if k.Secret {
		if viper.GetString(k.Key) == "" {
			return "(unset)"
		}
		return "********"
	}
	return val
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-26s %v  %s\n", k.Key, displayValue(k), source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'projectops config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
