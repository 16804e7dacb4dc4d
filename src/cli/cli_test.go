package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"commvault-ops/src/cli"
	"commvault-ops/src/cvapi"
	"commvault-ops/src/version"
)

func newFake(t *testing.T) *cvapi.FakeCommcell {
	t.Helper()
	for _, k := range []string{"CV_WEBCONSOLE_HOSTNAME", "CV_USERNAME", "CV_PASSWORD", "CV_AUTHTOKEN", "CV_LOG_LEVEL", "CV_LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	f := cvapi.NewFake("cs")
	f.Username, f.Password = "admin", "secret"
	f.IssueToken("tok")
	fs := f.AddClient("C1").AddAgent("File System")
	fs.AddBackupset("defaultBackupSet", true).AddSubclient("default")
	f.AddClient("C2")
	f.AddJobID("12345", "Backup", "Running", "Completed")
	t.Cleanup(cli.SetConnectorForTest(f))
	return f
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errb bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errb)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	_, err := cmd.ExecuteContextC(context.Background())
	return out.String(), errb.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec), out)
	return rec
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const backupRecord = `
operation: backup
entity_type: subclient
entity:
  client: C1
  agent: File System
  backupset: defaultBackupSet
  subclient: default
commcell:
  authtoken: tok
  webconsole_hostname: cs
args: {}
`

func TestRootHelp_ShowsUsage(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	require.Contains(t, out, "Usage:")
	require.Contains(t, out, "commvault-ops")
}

func TestVersionCommand_PrintsVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, version.Version)
}

func TestGlobalFlags_Present(t *testing.T) {
	cmd := cli.NewRootCmd(nil, nil)
	for _, name := range []string{"dry-run", "yes", "log-level", "log-format", "env-file", "format"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing global flag --%s", name)
	}
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	newFake(t)
	t.Setenv("CV_PASSWORD", "secret")
	out, _, err := execute(t, "login", "--hostname", "cs", "--username", "admin")
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["changed"])
	require.Equal(t, "cs", rec["webconsole_hostname"])
	require.True(t, strings.HasPrefix(rec["authtoken"].(string), "QSDK "))
}

func TestLogin_TokenThenReuse(t *testing.T) {
	f := newFake(t)
	out, _, err := execute(t, "run", "--operation", "login", "--entity", "webconsole_hostname=cs",
		"--entity", "commcell_username=admin", "--entity", "commcell_password=secret")
	require.NoError(t, err)
	login := decode(t, out)
	token := login["authtoken"].(string)

	out, _, err = execute(t, "run", "--operation", "all_clients", "--entity-type", "clients",
		"--hostname", "cs", "--authtoken", token)
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, false, rec["changed"])
	clients := rec["output"].(map[string]any)
	require.Contains(t, clients, "c1")
	require.Contains(t, clients, "c2")
	require.Empty(t, f.Calls)
}

func TestLogin_BadPasswordIsFailureRecord(t *testing.T) {
	newFake(t)
	out, _, err := execute(t, "login", "--hostname", "cs", "--username", "admin")
	require.Error(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["failed"])
	require.Contains(t, rec["msg"], "required")
}

func TestRun_InputFileBackup(t *testing.T) {
	f := newFake(t)
	p := writeFile(t, "backup.yaml", backupRecord)
	out, _, err := execute(t, "run", "--input", p)
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["changed"])
	id := rec["output"].(string)
	require.Contains(t, f.Jobs, id)
	require.Equal(t, []string{"backup default Incremental"}, f.Calls)
}

func TestRun_Stdin(t *testing.T) {
	newFake(t)
	var out, errb bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errb)
	cmd.SetIn(strings.NewReader(`{"operation": "wait_for_completion", "entity_type": "job",
		"entity": {"job_id": 12345}, "commcell": {"authtoken": "tok", "webconsole_hostname": "cs"}}`))
	cmd.SetArgs([]string{"run", "--input", "-"})
	require.NoError(t, cmd.Execute())
	rec := decode(t, out.String())
	require.Equal(t, true, rec["output"])
	require.Contains(t, errb.String(), "[job 12345]")
}

func TestRun_DryRunSkips(t *testing.T) {
	f := newFake(t)
	p := writeFile(t, "backup.yaml", backupRecord)
	out, _, err := execute(t, "--dry-run", "run", "--input", p)
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["skipped"])
	require.Equal(t, false, rec["changed"])
	require.Contains(t, rec["msg"], "check mode")
	require.Empty(t, f.Calls)
}

func TestRun_FlagArgs(t *testing.T) {
	f := newFake(t)
	_, _, err := execute(t, "run", "--operation", "restore_in_place", "--entity-type", "subclient",
		"--entity", "client=C1", "--entity", "agent=File System", "--entity", "backupset=defaultBackupSet", "--entity", "subclient=default",
		"--arg", "paths=[/etc, /var/log]", "--hostname", "cs", "--authtoken", "tok")
	require.NoError(t, err)
	require.Len(t, f.Calls, 1)
	require.True(t, strings.HasPrefix(f.Calls[0], "restore_in_place default"), f.Calls[0])
	require.Contains(t, f.Calls[0], "/var/log")
}

func TestRun_NotFoundIsFailureRecord(t *testing.T) {
	newFake(t)
	out, _, err := execute(t, "run", "--operation", "check_readiness", "--entity-type", "client",
		"--entity", "client=C9", "--hostname", "cs", "--authtoken", "tok")
	require.Error(t, err)
	rec := decode(t, out)
	require.Equal(t, map[string]any{"failed": true, "msg": "client not found: C9"}, rec)
}

func TestRun_SchemaViolationIsFailureRecord(t *testing.T) {
	newFake(t)
	p := writeFile(t, "bad.json", `{"operation": "backup", "entity": {"client": ["C1"]}}`)
	out, _, err := execute(t, "run", "--input", p)
	require.Error(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["failed"])
	require.Contains(t, rec["msg"], "invalid request")
}

func TestRun_RequiresInputOrOperation(t *testing.T) {
	newFake(t)
	out, _, err := execute(t, "run")
	require.Error(t, err)
	require.Empty(t, out)
}

func TestRun_YAMLFormat(t *testing.T) {
	newFake(t)
	out, _, err := execute(t, "--format", "yaml", "run", "--operation", "commserv_version",
		"--hostname", "cs", "--authtoken", "tok")
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
	require.Equal(t, map[string]any{"changed": false, "output": "11.32"}, rec)
}

func TestAnsibleArgsFile_CheckMode(t *testing.T) {
	f := newFake(t)
	p := writeFile(t, "args", `{"operation": "disable_backup", "entity_type": "client", "entity": {"client": "C1"},
		"commcell": {"authtoken": "tok", "webconsole_hostname": "cs"}, "_ansible_check_mode": true}`)
	out, _, err := execute(t, p)
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["skipped"])
	require.Empty(t, f.Calls)
}

func TestArgsFileFromStdin(t *testing.T) {
	f := newFake(t)
	var out, errb bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errb)
	cmd.SetIn(strings.NewReader(`{"operation": "disable_backup", "entity_type": "client", "entity": {"client": "C1"},
		"commcell": {"authtoken": "tok", "webconsole_hostname": "cs"}}`))
	cmd.SetArgs([]string{"-"})
	require.NoError(t, cmd.Execute())
	rec := decode(t, out.String())
	require.Equal(t, true, rec["changed"])
	require.Equal(t, []string{"disable_backup client C1"}, f.Calls)

	failed, _, err := execute(t, "-")
	require.Error(t, err)
	require.Equal(t, true, decode(t, failed)["failed"])
}

func TestAnsibleArgsFile_Runs(t *testing.T) {
	f := newFake(t)
	p := writeFile(t, "args", `{"operation": "disable_backup", "entity_type": "client", "entity": {"client": "C1"},
		"commcell": {"authtoken": "tok", "webconsole_hostname": "cs"}, "_ansible_verbosity": 0}`)
	out, _, err := execute(t, p)
	require.NoError(t, err)
	rec := decode(t, out)
	require.Equal(t, true, rec["changed"])
	require.Equal(t, []string{"disable_backup client C1"}, f.Calls)
}

func TestOperations_Table(t *testing.T) {
	out, _, err := execute(t, "operations", "subclient")
	require.NoError(t, err)
	require.Contains(t, out, "ENTITY_TYPE")
	require.Contains(t, out, "restore_out_of_place")
	require.Contains(t, out, "subclients")
	require.NotContains(t, out, "all_clients")
}

func TestOperations_JSON(t *testing.T) {
	out, _, err := execute(t, "operations", "job", "--output", "json")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	var found bool
	for _, r := range rows {
		if r["operation"] == "wait_for_completion" {
			found = true
			require.Equal(t, "job", r["entity_type"])
			require.Equal(t, "method", r["kind"])
		}
	}
	require.True(t, found)

	_, _, err = execute(t, "operations", "tape")
	require.ErrorContains(t, err, "unknown entity_type")
}
