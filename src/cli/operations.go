package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/dispatch"
	"commvault-ops/src/entities"
)

type operationRow struct {
	EntityType string   `json:"entity_type"`
	Operation  string   `json:"operation"`
	Kind       string   `json:"kind"`
	Mutating   bool     `json:"mutating"`
	Params     []string `json:"params"`
	Doc        string   `json:"doc,omitempty"`
}

func newOperationsCmd(stdout io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "operations [ENTITY_TYPE]",
		Short: "List the operations each entity type exposes",
		Long: "Lists the built-in operations. Fields of a node's properties document are\n" +
			"also readable by their snake_case name and are not listed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind cvapi.Kind
			if len(args) == 1 {
				k, _, err := entities.KindOf(args[0])
				if err != nil {
					return fmt.Errorf("%w (known: %s)", err, strings.Join(entities.KnownLabels(), ", "))
				}
				kind = k
			}
			rows := catalogRows(dispatch.Catalog(kind))
			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case "table", "":
				return renderTable(stdout, rows)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVar(&output, "output", "table", "Output format: table or json")
	return cmd
}

func catalogRows(entries []dispatch.Entry) []operationRow {
	rows := make([]operationRow, 0, len(entries))
	for _, e := range entries {
		label := string(e.Kind)
		if e.Plural {
			label = pluralLabel(e.Kind)
		}
		row := operationRow{
			EntityType: label,
			Operation:  e.Member.Name,
			Kind:       e.Member.Kind.String(),
			Mutating:   e.Member.Mutating,
			Params:     []string{},
			Doc:        e.Member.Doc,
		}
		for _, p := range e.Member.Params {
			row.Params = append(row.Params, paramString(p))
		}
		rows = append(rows, row)
	}
	return rows
}

func pluralLabel(k cvapi.Kind) string {
	switch k {
	case cvapi.KindDiskLibrary:
		return "disklibraries"
	case cvapi.KindJob:
		return "jobs"
	}
	return string(k) + "s"
}

func paramString(p dispatch.Param) string {
	s := p.Name + ":" + p.Type.String()
	switch {
	case p.Required:
		s += " (required)"
	case p.Default != nil:
		s += fmt.Sprintf("=%v", p.Default)
	}
	if len(p.Choices) > 0 {
		s += " [" + strings.Join(p.Choices, "|") + "]"
	}
	return s
}

func renderTable(w io.Writer, rows []operationRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY_TYPE\tOPERATION\tKIND\tMUTATING\tPARAMS")
	for _, r := range rows {
		mut := "no"
		if r.Mutating {
			mut = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.EntityType, r.Operation, r.Kind, mut, strings.Join(r.Params, ", "))
	}
	return tw.Flush()
}
