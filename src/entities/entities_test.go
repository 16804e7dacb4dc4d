package entities_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/entities"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newSession(t *testing.T) (*cvapi.FakeCommcell, cvapi.Session) {
	t.Helper()
	f := cvapi.NewFake("cs")
	f.IssueToken("tok")
	fs := f.AddClient("C1").AddAgent("File System")
	fs.AddBackupset("defaultBackupSet", true).AddSubclient("default")
	fs.AddInstance("DefaultInstanceName").AddSubclient("default")
	f.AddClient("C2")
	f.AddClientGroup("Linux", "C1")
	f.AddMediaAgent("ma1", true)
	f.AddStoragePool("pool1")
	f.AddDiskLibrary("lib1")
	f.AddJobID("12345", "Backup", "Completed")
	s, err := f.Connect(context.Background(), cvapi.Credentials{Hostname: "cs", AuthToken: "tok"})
	require.NoError(t, err)
	return f, s
}

func TestResolve_ClientChain(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{
		"client": "C1", "agent": "File System", "backupset": "defaultBackupSet", "subclient": "default",
	})
	require.NoError(t, err)
	require.Equal(t, "C1", e.Client().Name())
	require.Equal(t, "File System", e.Agent().Name())
	require.Equal(t, "defaultBackupSet", e.Backupset().Name())
	require.Equal(t, "default", e.Subclient().Name())
	require.Nil(t, e.Instance())
	require.Nil(t, e.Job())
	require.Nil(t, e.ClientGroup())
	require.Nil(t, e.MediaAgent())
}

func TestResolve_OnlyNamedNodes(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{"client": "C1"})
	require.NoError(t, err)
	require.NotNil(t, e.Client())
	require.NotNil(t, e.Agents())
	require.Nil(t, e.Agent())
	require.Nil(t, e.Backupsets())
	require.Nil(t, e.Subclients())
	require.Nil(t, e.Subclient())
}

func TestResolve_BackupsetWinsOverInstance(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{
		"client": "C1", "agent": "File System", "instance": "DefaultInstanceName",
		"backupset": "defaultBackupSet", "subclient": "default",
	})
	require.NoError(t, err)
	require.NotNil(t, e.Instance())
	require.NotNil(t, e.Backupset())

	fromBackupset, err := e.Backupset().Subclients().Get(context.Background(), "default")
	require.NoError(t, err)
	require.Equal(t, fromBackupset.ID(), e.Subclient().ID())

	fromInstance, err := e.Instance().Subclients().Get(context.Background(), "default")
	require.NoError(t, err)
	require.NotEqual(t, fromInstance.ID(), e.Subclient().ID())
}

func TestResolve_InstanceBranch(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{
		"client": "C1", "agent": "File System", "instance": "DefaultInstanceName", "subclient": "default",
	})
	require.NoError(t, err)
	fromInstance, err := e.Instance().Subclients().Get(context.Background(), "default")
	require.NoError(t, err)
	require.Equal(t, fromInstance.ID(), e.Subclient().ID())
}

func TestResolve_SiblingsWithoutClient(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{
		"job_id": "12345", "clientgroup": "linux", "media_agent": "ma1", "storage_pool": "pool1", "disk_library": "lib1",
		"agent": "File System", "colour": "blue",
	})
	require.NoError(t, err)
	require.Equal(t, "12345", e.Job().JobID())
	require.Equal(t, "Linux", e.ClientGroup().Name())
	require.Equal(t, "ma1", e.MediaAgent().Name())
	require.Equal(t, "pool1", e.StoragePool().Name())
	require.Equal(t, "lib1", e.DiskLibrary().Name())
	require.Nil(t, e.Client())
	require.Nil(t, e.Agent(), "agent without client is ignored")
}

func TestResolve_UnknownNameFails(t *testing.T) {
	_, s := newSession(t)
	cases := []entities.Names{
		{"client": "nope"},
		{"client": "C1", "agent": "Oracle"},
		{"client": "C1", "agent": "File System", "backupset": "missing"},
		{"client": "C1", "agent": "File System", "backupset": "defaultBackupSet", "subclient": "missing"},
		{"job_id": "1"},
		{"job_id": "abc"},
		{"storage_pool": "missing"},
	}
	for _, names := range cases {
		e, err := entities.Resolve(context.Background(), discard(), s, names)
		var nf *cvapi.NotFoundError
		require.ErrorAs(t, err, &nf, "names %v", names)
		require.Nil(t, e)
	}
}

func TestNamesFromMap(t *testing.T) {
	names, err := entities.NamesFromMap(map[string]any{"job_id": 12345, "client": "C1", "x": float64(7), "skip": nil})
	require.NoError(t, err)
	require.Equal(t, entities.Names{"job_id": "12345", "client": "C1", "x": "7"}, names)

	_, err = entities.NamesFromMap(map[string]any{"client": []any{"a"}})
	require.Error(t, err)
}

func TestBinding(t *testing.T) {
	_, s := newSession(t)
	e, err := entities.Resolve(context.Background(), discard(), s, entities.Names{"client": "C1"})
	require.NoError(t, err)

	b, err := e.Binding("Client")
	require.NoError(t, err)
	require.Equal(t, cvapi.KindClient, b.Kind)
	require.Same(t, e.Client(), b.Singular)
	require.NotNil(t, b.Plural)

	b, err = e.Binding("clients")
	require.NoError(t, err)
	require.Nil(t, b.Singular, "plural label binds the collection only")
	require.NotNil(t, b.Plural)

	b, err = e.Binding("agent")
	require.NoError(t, err)
	require.Nil(t, b.Singular)
	require.NotNil(t, b.Plural)

	b, err = e.Binding("subclient")
	require.NoError(t, err)
	require.Nil(t, b.Singular)
	require.Nil(t, b.Plural)

	for _, label := range []string{"", "commcell", "CommCell"} {
		b, err = e.Binding(label)
		require.NoError(t, err)
		require.Equal(t, cvapi.KindCommcell, b.Kind)
		require.Equal(t, s, b.Singular)
	}

	for _, label := range []string{"disk_library", "Disk-Library", "disk library", "disklibraries"} {
		b, err = e.Binding(label)
		require.NoError(t, err, label)
		require.Equal(t, cvapi.KindDiskLibrary, b.Kind)
	}

	_, err = e.Binding("tape_library")
	var unknown *entities.UnknownEntityTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "tape_library", unknown.Label)
}

func TestKindOf(t *testing.T) {
	kind, plural, err := entities.KindOf("Job_Controller")
	require.NoError(t, err)
	require.Equal(t, cvapi.KindJob, kind)
	require.True(t, plural)

	kind, plural, err = entities.KindOf("storage pool")
	require.NoError(t, err)
	require.Equal(t, cvapi.KindStoragePool, kind)
	require.False(t, plural)

	_, _, err = entities.KindOf("vm")
	require.Error(t, err)
}
