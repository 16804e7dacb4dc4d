package cli

import (
	"github.com/spf13/cobra"

	"commvault-ops/src/safety"
)

// addGlobalFlags adds persistent safety, logging and output flags to the
// root command.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("dry-run", false, "Validate the operation without running it (check mode)")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from CV_LOG_LEVEL or info)")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json (default from CV_LOG_FORMAT or text)")
	cmd.PersistentFlags().String("env-file", "", "Env file to load (default .env when present)")
	cmd.PersistentFlags().String("format", "json", "Output record format: json or yaml")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}

func getString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Root().PersistentFlags().GetString(name)
	return v
}
