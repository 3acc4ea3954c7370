package cmd

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/streamrelay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing streamrelay configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  streamrelay config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .streamrelay.yaml, /etc/streamrelay/config.yaml)
  - Environment variables (STREAMRELAY_RELAY_MAX_SEGMENT_NUM, etc.)
  - Command-line flags (for some options)

Environment variables use the STREAMRELAY_ prefix and underscores for nesting.
Example: relay.max_segment_num -> STREAMRELAY_RELAY_MAX_SEGMENT_NUM`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map for YAML display.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		if field.Kind() == reflect.Struct {
			result[key] = toMap(field.Interface())
		} else {
			result[key] = field.Interface()
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}

	cfgMap := toMap(&cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# streamrelay Configuration File")
	fmt.Println("# ===============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   STREAMRELAY_SERVICE_MPD_API_FORMAT, STREAMRELAY_SERVICE_KEY_API_FORMAT")
	fmt.Println("#   STREAMRELAY_RELAY_BANDWIDTH_TIER, STREAMRELAY_RELAY_LANGUAGES")
	fmt.Println("#   STREAMRELAY_RELAY_MAX_SEGMENT_NUM, STREAMRELAY_RELAY_OUTPUT_DIR")
	fmt.Println("#   STREAMRELAY_LOGGING_LEVEL, STREAMRELAY_LOGGING_FORMAT")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
