package cvapi

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// FakeCommcell is an in-memory CommCell for unit tests. It is also its own
// Connector. Build the hierarchy with the Add* helpers.
type FakeCommcell struct {
	Hostname string
	Username string
	Password string
	Info     CommServInfo

	ClientList     []*FakeClient
	GroupList      []*FakeClientGroup
	MediaAgentList []*FakeMediaAgent
	PoolList       []*FakeStorage
	LibraryList    []*FakeStorage
	Jobs           map[string]*FakeJob

	// Clock and PollInterval drive job waits. Defaults: wall clock, 1ms.
	Clock        clock.Clock
	PollInterval time.Duration

	// Calls records every mutating call in order, e.g. "backup default Full".
	Calls []string

	tokens map[string]bool
	nextID int
}

func NewFake(hostname string) *FakeCommcell {
	return &FakeCommcell{
		Hostname: hostname,
		Info:     CommServInfo{Name: "fakecs", Hostname: hostname, Version: "11.32"},
		Jobs:     map[string]*FakeJob{},
		tokens:   map[string]bool{},
		nextID:   100,
	}
}

func (f *FakeCommcell) id() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *FakeCommcell) record(format string, args ...any) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

// IssueToken registers a token as valid without a password login.
func (f *FakeCommcell) IssueToken(token string) {
	f.tokens[token] = true
}

func (f *FakeCommcell) Connect(_ context.Context, creds Credentials) (Session, error) {
	if strings.TrimSpace(creds.Hostname) == "" {
		return nil, &AuthenticationError{Reason: "webconsole hostname is required"}
	}
	if f.Hostname != "" && !strings.EqualFold(creds.Hostname, f.Hostname) {
		return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: "token was not issued by this webconsole"}
	}
	if creds.AuthToken != "" {
		if !f.tokens[creds.AuthToken] {
			return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: "invalid or expired token"}
		}
		return &fakeSession{f: f, token: creds.AuthToken, hostname: creds.Hostname}, nil
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: "either an authtoken or username and password are required"}
	}
	if creds.Username != f.Username || creds.Password != f.Password {
		return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: "invalid username or password"}
	}
	token := "QSDK " + f.id()
	f.tokens[token] = true
	return &fakeSession{f: f, token: token, hostname: creds.Hostname}, nil
}

type fakeSession struct {
	f        *FakeCommcell
	token    string
	hostname string
}

func (s *fakeSession) AuthToken() string          { return s.token }
func (s *fakeSession) WebconsoleHostname() string { return s.hostname }
func (s *fakeSession) String() string             { return describe("Commcell", "Commcell", s.hostname) }

func (s *fakeSession) CommServ(context.Context) (CommServInfo, error) { return s.f.Info, nil }

func (s *fakeSession) Clients() Clients {
	return &fakeCollection[Client]{resource: "client", items: func() []Client { return upcast[Client](s.f.ClientList) }}
}

func (s *fakeSession) ClientGroups() ClientGroups {
	return &fakeCollection[ClientGroup]{resource: "clientgroup", items: func() []ClientGroup { return upcast[ClientGroup](s.f.GroupList) }}
}

func (s *fakeSession) MediaAgents() MediaAgents {
	return &fakeCollection[MediaAgent]{resource: "mediaagent", items: func() []MediaAgent { return upcast[MediaAgent](s.f.MediaAgentList) }}
}

func (s *fakeSession) StoragePools() StoragePools {
	return &fakeCollection[StoragePool]{resource: "storagepool", items: func() []StoragePool { return upcast[StoragePool](s.f.PoolList) }}
}

func (s *fakeSession) DiskLibraries() DiskLibraries {
	return &fakeCollection[DiskLibrary]{resource: "disklibrary", items: func() []DiskLibrary { return upcast[DiskLibrary](s.f.LibraryList) }}
}

func (s *fakeSession) JobController() JobController { return &fakeJobController{f: s.f} }

func upcast[I any, P any](ps []P) []I {
	out := make([]I, 0, len(ps))
	for _, p := range ps {
		out = append(out, any(p).(I))
	}
	return out
}

type fakeCollection[T Node] struct {
	resource string
	items    func() []T
}

func (c *fakeCollection[T]) All(context.Context) ([]EntityRef, error) {
	items := c.items()
	out := make([]EntityRef, 0, len(items))
	for _, it := range items {
		out = append(out, EntityRef{Name: it.Name(), ID: it.ID()})
	}
	return out, nil
}

func (c *fakeCollection[T]) Get(_ context.Context, name string) (T, error) {
	for _, it := range c.items() {
		if strings.EqualFold(it.Name(), name) {
			return it, nil
		}
	}
	var zero T
	return zero, &NotFoundError{Resource: c.resource, Name: name}
}

// fakeBase carries what every fake node has: a name, an id and a
// properties document readable through Invoker.
type fakeBase struct {
	Document
	f    *FakeCommcell
	name string
	id   string
	kind string
}

func (b *fakeBase) Name() string   { return b.name }
func (b *fakeBase) ID() string     { return b.id }
func (b *fakeBase) String() string { return describe(b.kind, b.kind, b.name) }

func (f *FakeCommcell) base(kind, name, idKey, nameKey string) fakeBase {
	id := f.id()
	return fakeBase{
		Document: Document{idKey: id, nameKey: name},
		f:        f,
		name:     name,
		id:       id,
		kind:     kind,
	}
}

// FakeClient is a client in a FakeCommcell.
type FakeClient struct {
	fakeBase
	Host          string
	Ready         bool
	BackupEnabled bool
	Description   string
	AgentList     []*FakeAgent
}

func (f *FakeCommcell) AddClient(name string) *FakeClient {
	c := &FakeClient{fakeBase: f.base("Client", name, "clientId", "clientName"), Host: name, Ready: true, BackupEnabled: true}
	f.ClientList = append(f.ClientList, c)
	return c
}

func (c *FakeClient) Hostname() string { return c.Host }

func (c *FakeClient) Agents() Agents {
	return &fakeCollection[Agent]{resource: "agent", items: func() []Agent { return upcast[Agent](c.AgentList) }}
}

func (c *FakeClient) CheckReadiness(context.Context) (bool, error) { return c.Ready, nil }

func (c *FakeClient) EnableBackup(context.Context) error {
	c.BackupEnabled = true
	c.f.record("enable_backup client %s", c.name)
	return nil
}

func (c *FakeClient) DisableBackup(context.Context) error {
	c.BackupEnabled = false
	c.f.record("disable_backup client %s", c.name)
	return nil
}

func (c *FakeClient) SetDescription(_ context.Context, d string) error {
	c.Description = d
	c.f.record("description client %s %s", c.name, d)
	return nil
}

// FakeClientGroup is a client group in a FakeCommcell.
type FakeClientGroup struct {
	fakeBase
	Members       []string
	BackupEnabled bool
	Description   string
}

func (f *FakeCommcell) AddClientGroup(name string, members ...string) *FakeClientGroup {
	g := &FakeClientGroup{fakeBase: f.base("ClientGroup", name, "clientGroupId", "clientGroupName"), Members: members, BackupEnabled: true}
	f.GroupList = append(f.GroupList, g)
	return g
}

func (g *FakeClientGroup) AssociatedClients(context.Context) ([]string, error) {
	return append([]string(nil), g.Members...), nil
}

func (g *FakeClientGroup) EnableBackup(context.Context) error {
	g.BackupEnabled = true
	g.f.record("enable_backup clientgroup %s", g.name)
	return nil
}

func (g *FakeClientGroup) DisableBackup(context.Context) error {
	g.BackupEnabled = false
	g.f.record("disable_backup clientgroup %s", g.name)
	return nil
}

func (g *FakeClientGroup) SetDescription(_ context.Context, d string) error {
	g.Description = d
	g.f.record("description clientgroup %s %s", g.name, d)
	return nil
}

// FakeAgent is an agent on a FakeClient.
type FakeAgent struct {
	fakeBase
	BackupEnabled bool
	InstanceList  []*FakeInstance
	BackupsetList []*FakeBackupset
}

func (c *FakeClient) AddAgent(name string) *FakeAgent {
	a := &FakeAgent{fakeBase: c.f.base("Agent", name, "applicationId", "appName"), BackupEnabled: true}
	c.AgentList = append(c.AgentList, a)
	return a
}

func (a *FakeAgent) Instances() Instances {
	return &fakeCollection[Instance]{resource: "instance", items: func() []Instance { return upcast[Instance](a.InstanceList) }}
}

func (a *FakeAgent) Backupsets() Backupsets {
	return &fakeBackupsets{
		fakeCollection: fakeCollection[Backupset]{resource: "backupset", items: func() []Backupset { return upcast[Backupset](a.BackupsetList) }},
		agent:          a,
	}
}

func (a *FakeAgent) EnableBackup(context.Context) error {
	a.BackupEnabled = true
	a.f.record("enable_backup agent %s", a.name)
	return nil
}

func (a *FakeAgent) DisableBackup(context.Context) error {
	a.BackupEnabled = false
	a.f.record("disable_backup agent %s", a.name)
	return nil
}

type fakeBackupsets struct {
	fakeCollection[Backupset]
	agent *FakeAgent
}

func (bs *fakeBackupsets) DefaultBackupset(context.Context) (string, error) {
	for _, b := range bs.agent.BackupsetList {
		if b.Default {
			return b.name, nil
		}
	}
	return "", &NotFoundError{Resource: "backupset", Name: "default"}
}

// FakeInstance is an instance of a FakeAgent.
type FakeInstance struct {
	fakeBase
	SubclientList []*FakeSubclient
}

func (a *FakeAgent) AddInstance(name string) *FakeInstance {
	i := &FakeInstance{fakeBase: a.f.base("Instance", name, "instanceId", "instanceName")}
	a.InstanceList = append(a.InstanceList, i)
	return i
}

func (i *FakeInstance) Subclients() Subclients {
	return &fakeSubclients{
		fakeCollection: fakeCollection[Subclient]{resource: "subclient", items: func() []Subclient { return upcast[Subclient](i.SubclientList) }},
		f:              i.f,
		list:           &i.SubclientList,
	}
}

func (i *FakeInstance) AddSubclient(name string) *FakeSubclient {
	s := newFakeSubclient(i.f, name)
	i.SubclientList = append(i.SubclientList, s)
	return s
}

// FakeBackupset is a backup set of a FakeAgent.
type FakeBackupset struct {
	fakeBase
	Default       bool
	Description   string
	SubclientList []*FakeSubclient
}

func (a *FakeAgent) AddBackupset(name string, isDefault bool) *FakeBackupset {
	b := &FakeBackupset{fakeBase: a.f.base("Backupset", name, "backupsetId", "backupsetName"), Default: isDefault}
	a.BackupsetList = append(a.BackupsetList, b)
	return b
}

func (b *FakeBackupset) Subclients() Subclients {
	return &fakeSubclients{
		fakeCollection: fakeCollection[Subclient]{resource: "subclient", items: func() []Subclient { return upcast[Subclient](b.SubclientList) }},
		f:              b.f,
		list:           &b.SubclientList,
	}
}

func (b *FakeBackupset) AddSubclient(name string) *FakeSubclient {
	s := newFakeSubclient(b.f, name)
	b.SubclientList = append(b.SubclientList, s)
	return s
}

func (b *FakeBackupset) Backup(ctx context.Context, level string) ([]Job, error) {
	var jobs []Job
	for _, s := range b.SubclientList {
		j, err := s.Backup(ctx, BackupOptions{Level: level})
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (b *FakeBackupset) SetDescription(_ context.Context, d string) error {
	b.Description = d
	b.f.record("description backupset %s %s", b.name, d)
	return nil
}

type fakeSubclients struct {
	fakeCollection[Subclient]
	f    *FakeCommcell
	list *[]*FakeSubclient
}

func (ss *fakeSubclients) Add(ctx context.Context, spec SubclientSpec) (Subclient, error) {
	if _, err := ss.Get(ctx, spec.Name); err == nil {
		return nil, &RemoteOperationError{Operation: "POST Subclient", Message: "Subclient already exists: " + spec.Name}
	}
	s := newFakeSubclient(ss.f, spec.Name)
	s.Description = spec.Description
	s.StoragePolicy = spec.StoragePolicy
	*ss.list = append(*ss.list, s)
	ss.f.record("add subclient %s", spec.Name)
	return s, nil
}

func (ss *fakeSubclients) Delete(_ context.Context, name string) error {
	for i, s := range *ss.list {
		if strings.EqualFold(s.name, name) {
			*ss.list = append((*ss.list)[:i], (*ss.list)[i+1:]...)
			ss.f.record("delete subclient %s", name)
			return nil
		}
	}
	return &NotFoundError{Resource: "subclient", Name: name}
}

// FakeSubclient is a subclient under a FakeInstance or FakeBackupset.
type FakeSubclient struct {
	fakeBase
	BackupEnabled bool
	Description   string
	StoragePolicy string
	Content       []string
	DataReaders   int
}

func newFakeSubclient(f *FakeCommcell, name string) *FakeSubclient {
	return &FakeSubclient{fakeBase: f.base("Subclient", name, "subclientId", "subclientName"), BackupEnabled: true, DataReaders: 2}
}

func (s *FakeSubclient) IsBackupEnabled() bool { return s.BackupEnabled }

func (s *FakeSubclient) Backup(_ context.Context, opts BackupOptions) (Job, error) {
	level := opts.Level
	if level == "" {
		level = "Incremental"
	}
	s.f.record("backup %s %s", s.name, level)
	return s.f.AddJob("Backup", "Running", "Completed"), nil
}

func (s *FakeSubclient) RestoreInPlace(_ context.Context, opts RestoreOptions) (Job, error) {
	s.f.record("restore_in_place %s %s", s.name, strings.Join(opts.Paths, ","))
	return s.f.AddJob("Restore", "Running", "Completed"), nil
}

func (s *FakeSubclient) RestoreOutOfPlace(_ context.Context, opts RestoreOptions) (Job, error) {
	s.f.record("restore_out_of_place %s %s %s %s", s.name, opts.Client, opts.DestinationPath, strings.Join(opts.Paths, ","))
	return s.f.AddJob("Restore", "Running", "Completed"), nil
}

func (s *FakeSubclient) EnableBackup(context.Context) error {
	s.BackupEnabled = true
	s.f.record("enable_backup subclient %s", s.name)
	return nil
}

func (s *FakeSubclient) DisableBackup(context.Context) error {
	s.BackupEnabled = false
	s.f.record("disable_backup subclient %s", s.name)
	return nil
}

func (s *FakeSubclient) SetDescription(_ context.Context, d string) error {
	s.Description = d
	s.f.record("description subclient %s %s", s.name, d)
	return nil
}

func (s *FakeSubclient) SetContent(_ context.Context, paths []string) error {
	s.Content = append([]string(nil), paths...)
	s.f.record("content subclient %s %s", s.name, strings.Join(paths, ","))
	return nil
}

func (s *FakeSubclient) SetDataReaders(_ context.Context, n int) error {
	s.DataReaders = n
	s.f.record("data_readers subclient %s %d", s.name, n)
	return nil
}

// FakeMediaAgent is a media agent in a FakeCommcell.
type FakeMediaAgent struct {
	fakeBase
	Online bool
}

func (f *FakeCommcell) AddMediaAgent(name string, online bool) *FakeMediaAgent {
	m := &FakeMediaAgent{fakeBase: f.base("MediaAgent", name, "mediaAgentId", "mediaAgentName"), Online: online}
	f.MediaAgentList = append(f.MediaAgentList, m)
	return m
}

func (m *FakeMediaAgent) IsOnline() bool { return m.Online }

// FakeStorage serves both storage pools and disk libraries.
type FakeStorage struct {
	fakeBase
}

func (f *FakeCommcell) AddStoragePool(name string) *FakeStorage {
	p := &FakeStorage{fakeBase: f.base("StoragePool", name, "storagePoolId", "storagePoolName")}
	f.PoolList = append(f.PoolList, p)
	return p
}

func (f *FakeCommcell) AddDiskLibrary(name string) *FakeStorage {
	l := &FakeStorage{fakeBase: f.base("DiskLibrary", name, "libraryId", "libraryName")}
	f.LibraryList = append(f.LibraryList, l)
	return l
}

// FakeJob replays a scripted sequence of statuses: every Summary call moves
// one step forward and the last status sticks.
type FakeJob struct {
	f        *FakeCommcell
	id       string
	JobType  string
	Statuses []string
	step     int
}

// AddJob registers a job that will go through statuses in order.
func (f *FakeCommcell) AddJob(jobType string, statuses ...string) *FakeJob {
	return f.AddJobID(f.id(), jobType, statuses...)
}

// AddJobID is AddJob with a fixed job id.
func (f *FakeCommcell) AddJobID(id, jobType string, statuses ...string) *FakeJob {
	if len(statuses) == 0 {
		statuses = []string{"Completed"}
	}
	j := &FakeJob{f: f, id: id, JobType: jobType, Statuses: statuses}
	f.Jobs[j.id] = j
	return j
}

func (j *FakeJob) JobID() string  { return j.id }
func (j *FakeJob) String() string { return fmt.Sprintf("Job class instance for job id: %q", j.id) }

func (j *FakeJob) status() string {
	if j.step >= len(j.Statuses) {
		return j.Statuses[len(j.Statuses)-1]
	}
	return j.Statuses[j.step]
}

func (j *FakeJob) Summary(context.Context) (JobSummary, error) {
	s := JobSummary{JobID: j.id, JobType: j.JobType, Status: j.status()}
	if IsFinished(s.Status) {
		s.PercentComplete = 100
	}
	if j.step < len(j.Statuses)-1 {
		j.step++
	}
	return s, nil
}

func (j *FakeJob) WaitForCompletion(ctx context.Context, timeout time.Duration, onUpdate func(JobSummary)) (bool, error) {
	clk := j.f.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := j.f.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return waitForCompletion(ctx, clk, interval, timeout, j.Summary, onUpdate)
}

func (j *FakeJob) force(action, status string) error {
	if IsFinished(j.status()) {
		return &RemoteOperationError{Operation: "POST Job/" + j.id + "/action/" + action, Message: "job " + j.id + " has already finished"}
	}
	j.Statuses = []string{status}
	j.step = 0
	j.f.record("%s job %s", action, j.id)
	return nil
}

func (j *FakeJob) Kill(context.Context, bool) error   { return j.force("kill", "Killed") }
func (j *FakeJob) Pause(context.Context, bool) error  { return j.force("pause", "Suspended") }
func (j *FakeJob) Resume(context.Context, bool) error { return j.force("resume", "Running") }

type fakeJobController struct{ f *FakeCommcell }

func (jc *fakeJobController) Get(_ context.Context, jobID string) (Job, error) {
	j, ok := jc.f.Jobs[jobID]
	if !ok {
		return nil, &NotFoundError{Resource: "job", Name: jobID}
	}
	return j, nil
}

func (jc *fakeJobController) List(_ context.Context, filter JobFilter) ([]JobSummary, error) {
	ids := make([]string, 0, len(jc.f.Jobs))
	for id := range jc.f.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []JobSummary
	for _, id := range ids {
		j := jc.f.Jobs[id]
		s := JobSummary{JobID: id, JobType: j.JobType, Status: j.status()}
		switch filter.Category {
		case JobsFinished:
			if !IsFinished(s.Status) {
				continue
			}
		case JobsAll:
		default:
			if IsFinished(s.Status) {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}
