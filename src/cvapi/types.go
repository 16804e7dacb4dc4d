package cvapi

import (
	"context"
	"time"
)

// Kind names one fixed kind of node in the CommCell hierarchy.
type Kind string

const (
	KindCommcell    Kind = "commcell"
	KindClient      Kind = "client"
	KindClientGroup Kind = "clientgroup"
	KindAgent       Kind = "agent"
	KindInstance    Kind = "instance"
	KindBackupset   Kind = "backupset"
	KindSubclient   Kind = "subclient"
	KindJob         Kind = "job"
	KindMediaAgent  Kind = "mediaagent"
	KindStoragePool Kind = "storagepool"
	KindDiskLibrary Kind = "disklibrary"
)

// Credentials are the inputs to a login. When AuthToken is set it is used
// and Username/Password are ignored.
type Credentials struct {
	Hostname  string
	Username  string
	Password  string
	AuthToken string
}

// Connector builds an authenticated Session.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Session, error)
}

// Session is one authenticated connection to a CommCell. It is the root of
// every collection the resolver can reach.
type Session interface {
	AuthToken() string
	WebconsoleHostname() string
	CommServ(ctx context.Context) (CommServInfo, error)

	Clients() Clients
	ClientGroups() ClientGroups
	JobController() JobController
	MediaAgents() MediaAgents
	StoragePools() StoragePools
	DiskLibraries() DiskLibraries
}

// CommServInfo describes the CommServe behind a session.
type CommServInfo struct {
	Name     string
	Hostname string
	Version  string
}

// EntityRef is one row of a collection listing.
type EntityRef struct {
	Name     string
	ID       string
	Hostname string // clients only
}

// Collection is the plural manager for one node kind.
type Collection[T any] interface {
	// All lists every entity in the collection.
	All(ctx context.Context) ([]EntityRef, error)
	// Get resolves a single entity by name. Names are matched
	// case-insensitively. An unknown name yields *NotFoundError.
	Get(ctx context.Context, name string) (T, error)
}

// Node is what every addressed entity has in common.
type Node interface {
	Name() string
	ID() string
	// Properties returns the entity's properties document as fetched when
	// the entity was resolved.
	Properties() map[string]any
}

type (
	Clients       = Collection[Client]
	ClientGroups  = Collection[ClientGroup]
	Agents        = Collection[Agent]
	Instances     = Collection[Instance]
	MediaAgents   = Collection[MediaAgent]
	StoragePools  = Collection[StoragePool]
	DiskLibraries = Collection[DiskLibrary]
)

// Backupsets adds the default backup set lookup to the collection.
type Backupsets interface {
	Collection[Backupset]
	DefaultBackupset(ctx context.Context) (string, error)
}

// Subclients adds creation and deletion to the collection.
type Subclients interface {
	Collection[Subclient]
	Add(ctx context.Context, spec SubclientSpec) (Subclient, error)
	Delete(ctx context.Context, name string) error
}

// SubclientSpec describes a subclient to create.
type SubclientSpec struct {
	Name          string
	StoragePolicy string
	Description   string
}

// Client is a machine registered with the CommCell.
type Client interface {
	Node
	Hostname() string
	Agents() Agents
	CheckReadiness(ctx context.Context) (bool, error)
	EnableBackup(ctx context.Context) error
	DisableBackup(ctx context.Context) error
	SetDescription(ctx context.Context, description string) error
}

// ClientGroup is a named group of clients.
type ClientGroup interface {
	Node
	AssociatedClients(ctx context.Context) ([]string, error)
	EnableBackup(ctx context.Context) error
	DisableBackup(ctx context.Context) error
	SetDescription(ctx context.Context, description string) error
}

// Agent is an iDataAgent installed on a client (e.g. "File System").
type Agent interface {
	Node
	Instances() Instances
	Backupsets() Backupsets
	EnableBackup(ctx context.Context) error
	DisableBackup(ctx context.Context) error
}

// Instance is an agent instance; instance-based agents hang subclients here.
type Instance interface {
	Node
	Subclients() Subclients
}

// Backupset groups subclients under an agent.
type Backupset interface {
	Node
	Subclients() Subclients
	// Backup runs a backup of every subclient in the backup set.
	Backup(ctx context.Context, level string) ([]Job, error)
	SetDescription(ctx context.Context, description string) error
}

// Subclient is the unit of backup content.
type Subclient interface {
	Node
	IsBackupEnabled() bool
	Backup(ctx context.Context, opts BackupOptions) (Job, error)
	RestoreInPlace(ctx context.Context, opts RestoreOptions) (Job, error)
	RestoreOutOfPlace(ctx context.Context, opts RestoreOptions) (Job, error)
	EnableBackup(ctx context.Context) error
	DisableBackup(ctx context.Context) error
	SetDescription(ctx context.Context, description string) error
	SetContent(ctx context.Context, paths []string) error
	SetDataReaders(ctx context.Context, readers int) error
}

// BackupOptions are the knobs of a subclient backup.
type BackupOptions struct {
	Level            string // Full, Incremental, Differential, Synthetic_full
	IncrementalLevel string // BEFORE_SYNTH or AFTER_SYNTH, synthetic full only
	Incremental      bool   // run an incremental with the synthetic full
}

// RestoreOptions are the knobs of a subclient restore. Client and
// DestinationPath are only used out of place.
type RestoreOptions struct {
	Paths             []string
	Overwrite         bool
	RestoreDataAndACL bool
	CopyPrecedence    int
	Client            string
	DestinationPath   string
}

// JobController looks up and lists jobs.
type JobController interface {
	Get(ctx context.Context, jobID string) (Job, error)
	List(ctx context.Context, filter JobFilter) ([]JobSummary, error)
}

// JobCategory selects which jobs List returns.
type JobCategory string

const (
	JobsActive   JobCategory = "Active"
	JobsFinished JobCategory = "Finished"
	JobsAll      JobCategory = "All"
)

// JobFilter narrows a job listing.
type JobFilter struct {
	Category   JobCategory
	ClientName string
	JobTypes   string        // comma separated, e.g. "Backup,Restore"
	LookupTime time.Duration // finished jobs younger than this
}

// JobSummary is a point-in-time view of a job.
type JobSummary struct {
	JobID           string
	JobType         string
	Status          string
	Phase           string
	BackupLevel     string
	PercentComplete int
	PendingReason   string
	DelayReason     string
	ClientName      string
	SubclientName   string
	StartTime       time.Time
	EndTime         time.Time
}

// Job is an asynchronous unit of work.
type Job interface {
	JobID() string
	// Summary fetches the current state of the job.
	Summary(ctx context.Context) (JobSummary, error)
	// WaitForCompletion polls until the job finishes or timeout elapses and
	// reports whether it finished successfully. A zero timeout waits forever.
	// onUpdate, if non-nil, is called with every polled summary.
	WaitForCompletion(ctx context.Context, timeout time.Duration, onUpdate func(JobSummary)) (bool, error)
	Kill(ctx context.Context, wait bool) error
	Pause(ctx context.Context, wait bool) error
	Resume(ctx context.Context, wait bool) error
}

// MediaAgent is a data mover host.
type MediaAgent interface {
	Node
	IsOnline() bool
}

// StoragePool is a pool of backup storage.
type StoragePool interface {
	Node
}

// DiskLibrary is a disk library backing storage pools.
type DiskLibrary interface {
	Node
}

// Invoker is implemented by nodes that can serve operations outside the
// typed catalog. It takes the raw named argument bag.
type Invoker interface {
	HasOperation(name string) bool
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}
