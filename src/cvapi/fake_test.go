package cvapi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"commvault-ops/src/cvapi"
)

func TestFake_LoginIssuesReusableToken(t *testing.T) {
	f := cvapi.NewFake("cs.example.com")
	f.Username, f.Password = "admin", "pw"
	ctx := context.Background()

	s, err := f.Connect(ctx, cvapi.Credentials{Hostname: "cs.example.com", Username: "admin", Password: "pw"})
	require.NoError(t, err)
	require.NotEmpty(t, s.AuthToken())

	again, err := f.Connect(ctx, cvapi.Credentials{Hostname: "cs.example.com", AuthToken: s.AuthToken()})
	require.NoError(t, err)
	require.Equal(t, s.AuthToken(), again.AuthToken())

	_, err = f.Connect(ctx, cvapi.Credentials{Hostname: "other.example.com", AuthToken: s.AuthToken()})
	var authErr *cvapi.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	_, err = f.Connect(ctx, cvapi.Credentials{Hostname: "cs.example.com", Username: "admin", Password: "nope"})
	require.ErrorAs(t, err, &authErr)
}

func TestFake_HierarchyAndMutations(t *testing.T) {
	f := cvapi.NewFake("cs")
	f.IssueToken("tok")
	fs := f.AddClient("C1").AddAgent("File System")
	fs.AddBackupset("defaultBackupSet", true).AddSubclient("default")
	ctx := context.Background()

	s, err := f.Connect(ctx, cvapi.Credentials{Hostname: "cs", AuthToken: "tok"})
	require.NoError(t, err)
	c, err := s.Clients().Get(ctx, "c1")
	require.NoError(t, err)
	a, err := c.Agents().Get(ctx, "File System")
	require.NoError(t, err)
	def, err := a.Backupsets().DefaultBackupset(ctx)
	require.NoError(t, err)
	require.Equal(t, "defaultBackupSet", def)

	bs, err := a.Backupsets().Get(ctx, def)
	require.NoError(t, err)
	subs := bs.Subclients()
	_, err = subs.Add(ctx, cvapi.SubclientSpec{Name: "etc", StoragePolicy: "sp1"})
	require.NoError(t, err)
	refs, err := subs.All(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.NoError(t, subs.Delete(ctx, "etc"))
	_, err = subs.Get(ctx, "etc")
	var nf *cvapi.NotFoundError
	require.ErrorAs(t, err, &nf)

	sc, err := subs.Get(ctx, "default")
	require.NoError(t, err)
	job, err := sc.Backup(ctx, cvapi.BackupOptions{})
	require.NoError(t, err)
	ok, err := job.WaitForCompletion(ctx, 0, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"add subclient etc", "delete subclient etc", "backup default Incremental"}, f.Calls)
}

func TestFake_JobActions(t *testing.T) {
	f := cvapi.NewFake("cs")
	f.IssueToken("tok")
	running := f.AddJob("Backup", "Running")
	done := f.AddJob("Backup", "Completed")
	ctx := context.Background()
	s, err := f.Connect(ctx, cvapi.Credentials{Hostname: "cs", AuthToken: "tok"})
	require.NoError(t, err)

	active, err := s.JobController().List(ctx, cvapi.JobFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, running.JobID(), active[0].JobID)

	require.NoError(t, running.Kill(ctx, true))
	sum, err := running.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, "Killed", sum.Status)

	var remote *cvapi.RemoteOperationError
	require.ErrorAs(t, done.Pause(ctx, false), &remote)
}
