package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"commvault-ops/src/invocation"
	"commvault-ops/src/session"
)

func newRunCmd() *cobra.Command {
	var (
		input      string
		operation  string
		entityType string
		entity     []string
		args       []string
		authtoken  string
		hostname   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one operation from an input record or from flags",
		Example: `  commvault-ops run --input backup.yaml
  commvault-ops run --operation backup --entity-type subclient \
    --entity client=C1 --entity "agent=File System" --entity backupset=defaultBackupSet --entity subclient=default \
    --arg backup_level=Full --hostname cs01 --authtoken "$TOKEN"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input != "" && operation != "" {
				return errors.New("use either --input or --operation, not both")
			}
			if input == "" && operation == "" {
				return errors.New("--input or --operation is required")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			in, err := readRecord(cmd, input, operation, entityType, entity, args)
			if err != nil {
				return a.emit(invocation.FailureRecord(err))
			}
			target := in.Commcell
			if in.IsLogin() {
				target = in.Entity
			}
			if hostname != "" {
				target[session.KeyHostname] = hostname
			}
			if authtoken != "" {
				target[session.KeyAuthToken] = authtoken
			}
			interactive := input != "-" && isTerminal(cmd.InOrStdin())
			return a.emit(a.execute(contextOf(cmd), in, interactive))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input record file (JSON, JSONC or YAML); - reads stdin")
	cmd.Flags().StringVarP(&operation, "operation", "o", "", "Operation name, or login")
	cmd.Flags().StringVarP(&entityType, "entity-type", "t", "", "Entity type label, e.g. subclient or clients")
	cmd.Flags().StringArrayVarP(&entity, "entity", "e", nil, "Entity key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&args, "arg", "a", nil, "Argument key=value (repeatable); [a,b] and {k: v} values are parsed as YAML")
	cmd.Flags().StringVar(&authtoken, "authtoken", "", "Session token from a previous login")
	cmd.Flags().StringVar(&hostname, "hostname", "", "WebConsole hostname")
	return cmd
}

func readRecord(cmd *cobra.Command, input, operation, entityType string, entity, args []string) (invocation.Input, error) {
	if input != "" {
		return invocation.ReadFile(input, cmd.InOrStdin())
	}
	doc := map[string]any{"operation": operation}
	if entityType != "" {
		doc["entity_type"] = entityType
	}
	ents, err := parsePairs("--entity", entity, func(v string) any { return v })
	if err != nil {
		return invocation.Input{}, err
	}
	doc["entity"] = ents
	vals, err := parsePairs("--arg", args, parseArgValue)
	if err != nil {
		return invocation.Input{}, err
	}
	doc["args"] = vals
	return invocation.FromMap(doc)
}

func parsePairs(flag string, pairs []string, value func(string) any) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%s %q: expected key=value", flag, p)
		}
		out[k] = value(v)
	}
	return out, nil
}

// parseArgValue keeps scalars as strings, since member parameters coerce
// them, and decodes flow-style lists and maps.
func parseArgValue(v string) any {
	t := strings.TrimSpace(v)
	if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
		var decoded any
		if err := yaml.Unmarshal([]byte(t), &decoded); err == nil {
			return decoded
		}
	}
	return v
}
