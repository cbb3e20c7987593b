package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write configuration values",
	Long: `Reads and writes dotted keys of the TOML config file, for example
chunking.size or embedding.provider. Writes are validated before they are
saved.`,
}

var configGetCmd = &cobra.Command{
	Use:         "get [key]",
	Short:       "Print one value, or every value",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationSkipInit: "true"},
	RunE:        runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:         "set [key] [value]",
	Short:       "Set a value",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{annotationSkipInit: "true"},
	RunE:        runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file location",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipInit: "true"},
	RunE:        runConfigPath,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	if len(args) == 1 {
		val, ok := configStore.Get(args[0])
		if !ok {
			return fmt.Errorf("key %q is not set", args[0])
		}
		cmd.Println(formatValue(val))
		return nil
	}

	keys := configStore.Keys()
	if len(keys) == 0 {
		cmd.Printf("No values set in %s; built-in defaults apply.\n", configStore.Path())
		return nil
	}
	for _, k := range keys {
		val, _ := configStore.Get(k)
		cmd.Printf("%s = %s\n", k, formatValue(val))
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, value := args[0], parseValue(args[1])
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, formatValue(value))
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	cmd.Println(configStore.Path())
	return nil
}

// parseValue types a command-line value: integer, float, bool, a
// comma-separated list in brackets, or string.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if inner, ok := strings.CutPrefix(s, "["); ok {
		if inner, ok = strings.CutSuffix(inner, "]"); ok {
			items := []any{}
			for part := range strings.SplitSeq(inner, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, strings.Trim(part, `"'`))
				}
			}
			return items
		}
	}
	return s
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}
