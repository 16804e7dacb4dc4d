package invocation

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"commvault-ops/src/dispatch"
	"commvault-ops/src/session"
)

// Record is an output record.
type Record map[string]any

func LoginRecord(info session.Info) Record {
	return Record{
		"changed":             true,
		"authtoken":           info.AuthToken,
		"webconsole_hostname": info.WebconsoleHostname,
	}
}

func ResultRecord(res dispatch.Result) Record {
	if res.Skipped {
		return Record{"changed": false, "skipped": true, "msg": res.Message}
	}
	return Record{"changed": res.Changed, "output": res.Value}
}

// FailureRecord carries the error text verbatim.
func FailureRecord(err error) Record {
	return Record{"failed": true, "msg": err.Error()}
}

// Failed reports whether r is a failure record.
func (r Record) Failed() bool {
	failed, _ := r["failed"].(bool)
	return failed
}

// Write encodes r as "json" (indented) or "yaml".
func Write(w io.Writer, r Record, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(r)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported --format: %s", format)
	}
}
