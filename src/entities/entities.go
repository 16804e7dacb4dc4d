// Package entities resolves a flat map of entity names into the nodes and
// collections of the CommCell hierarchy that an operation can address.
package entities

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"commvault-ops/src/cvapi"
)

// Entity map keys.
const (
	KeyClient      = "client"
	KeyAgent       = "agent"
	KeyInstance    = "instance"
	KeyBackupset   = "backupset"
	KeySubclient   = "subclient"
	KeyJobID       = "job_id"
	KeyClientGroup = "clientgroup"
	KeyMediaAgent  = "media_agent"
	KeyStoragePool = "storage_pool"
	KeyDiskLibrary = "disk_library"
)

var knownKeys = map[string]bool{
	KeyClient: true, KeyAgent: true, KeyInstance: true, KeyBackupset: true, KeySubclient: true,
	KeyJobID: true, KeyClientGroup: true, KeyMediaAgent: true, KeyStoragePool: true, KeyDiskLibrary: true,
}

// Names maps entity keys to entity names.
type Names map[string]string

// NamesFromMap converts a decoded entity map. Numbers are accepted and
// rendered without exponent, so job_id: 12345 becomes "12345".
func NamesFromMap(m map[string]any) (Names, error) {
	out := Names{}
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		case int:
			out[k] = strconv.Itoa(x)
		case int64:
			out[k] = strconv.FormatInt(x, 10)
		case uint64:
			out[k] = strconv.FormatUint(x, 10)
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("entity %s: expected a name, got %T", k, v)
		}
	}
	return out, nil
}

// Entities is the result of one resolution. It is never mutated after
// Resolve returns; unresolved members are nil.
type Entities struct {
	session cvapi.Session

	clients       cvapi.Clients
	clientGroups  cvapi.ClientGroups
	jobs          cvapi.JobController
	mediaAgents   cvapi.MediaAgents
	storagePools  cvapi.StoragePools
	diskLibraries cvapi.DiskLibraries

	client     cvapi.Client
	agents     cvapi.Agents
	agent      cvapi.Agent
	instances  cvapi.Instances
	backupsets cvapi.Backupsets
	instance   cvapi.Instance
	backupset  cvapi.Backupset
	subclients cvapi.Subclients
	subclient  cvapi.Subclient

	job         cvapi.Job
	clientGroup cvapi.ClientGroup
	mediaAgent  cvapi.MediaAgent
	storagePool cvapi.StoragePool
	diskLibrary cvapi.DiskLibrary
}

// Resolve walks the hierarchy for every key present in names. Lookups are
// read-only; an unknown name fails with *cvapi.NotFoundError.
func Resolve(ctx context.Context, logger *slog.Logger, s cvapi.Session, names Names) (*Entities, error) {
	e := &Entities{
		session:       s,
		clients:       s.Clients(),
		clientGroups:  s.ClientGroups(),
		jobs:          s.JobController(),
		mediaAgents:   s.MediaAgents(),
		storagePools:  s.StoragePools(),
		diskLibraries: s.DiskLibraries(),
	}

	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !knownKeys[k] {
			logger.Debug("ignoring unknown entity key", "key", k)
		}
	}

	var err error
	if name, ok := names[KeyClient]; ok {
		if e.client, err = e.clients.Get(ctx, name); err != nil {
			return nil, err
		}
		e.agents = e.client.Agents()
		logger.Debug("resolved entity", "kind", cvapi.KindClient, "name", name)

		if name, ok := names[KeyAgent]; ok {
			if e.agent, err = e.agents.Get(ctx, name); err != nil {
				return nil, err
			}
			e.instances = e.agent.Instances()
			e.backupsets = e.agent.Backupsets()
			logger.Debug("resolved entity", "kind", cvapi.KindAgent, "name", name)

			if name, ok := names[KeyInstance]; ok {
				if e.instance, err = e.instances.Get(ctx, name); err != nil {
					return nil, err
				}
				e.subclients = e.instance.Subclients()
				logger.Debug("resolved entity", "kind", cvapi.KindInstance, "name", name)
			}
			// A backup set takes over the subclient source from an instance.
			if name, ok := names[KeyBackupset]; ok {
				if e.backupset, err = e.backupsets.Get(ctx, name); err != nil {
					return nil, err
				}
				e.subclients = e.backupset.Subclients()
				logger.Debug("resolved entity", "kind", cvapi.KindBackupset, "name", name)
			}
			if name, ok := names[KeySubclient]; ok && e.subclients != nil {
				if e.subclient, err = e.subclients.Get(ctx, name); err != nil {
					return nil, err
				}
				logger.Debug("resolved entity", "kind", cvapi.KindSubclient, "name", name)
			}
		}
	}
	for _, k := range []string{KeyAgent, KeyInstance, KeyBackupset, KeySubclient} {
		if _, ok := names[k]; ok && !e.parentResolved(k) {
			logger.Debug("ignoring entity key without its parent", "key", k)
		}
	}

	if id, ok := names[KeyJobID]; ok {
		if e.job, err = e.jobs.Get(ctx, id); err != nil {
			return nil, err
		}
		logger.Debug("resolved entity", "kind", cvapi.KindJob, "name", id)
	}
	if name, ok := names[KeyClientGroup]; ok {
		if e.clientGroup, err = e.clientGroups.Get(ctx, name); err != nil {
			return nil, err
		}
		logger.Debug("resolved entity", "kind", cvapi.KindClientGroup, "name", name)
	}
	if name, ok := names[KeyMediaAgent]; ok {
		if e.mediaAgent, err = e.mediaAgents.Get(ctx, name); err != nil {
			return nil, err
		}
		logger.Debug("resolved entity", "kind", cvapi.KindMediaAgent, "name", name)
	}
	if name, ok := names[KeyStoragePool]; ok {
		if e.storagePool, err = e.storagePools.Get(ctx, name); err != nil {
			return nil, err
		}
		logger.Debug("resolved entity", "kind", cvapi.KindStoragePool, "name", name)
	}
	if name, ok := names[KeyDiskLibrary]; ok {
		if e.diskLibrary, err = e.diskLibraries.Get(ctx, name); err != nil {
			return nil, err
		}
		logger.Debug("resolved entity", "kind", cvapi.KindDiskLibrary, "name", name)
	}
	return e, nil
}

func (e *Entities) parentResolved(key string) bool {
	switch key {
	case KeyAgent:
		return e.client != nil
	case KeyInstance, KeyBackupset:
		return e.agent != nil
	case KeySubclient:
		return e.subclients != nil
	}
	return true
}

func (e *Entities) Session() cvapi.Session             { return e.session }
func (e *Entities) Client() cvapi.Client               { return e.client }
func (e *Entities) Agent() cvapi.Agent                 { return e.agent }
func (e *Entities) Instance() cvapi.Instance           { return e.instance }
func (e *Entities) Backupset() cvapi.Backupset         { return e.backupset }
func (e *Entities) Subclient() cvapi.Subclient         { return e.subclient }
func (e *Entities) Job() cvapi.Job                     { return e.job }
func (e *Entities) ClientGroup() cvapi.ClientGroup     { return e.clientGroup }
func (e *Entities) MediaAgent() cvapi.MediaAgent       { return e.mediaAgent }
func (e *Entities) StoragePool() cvapi.StoragePool     { return e.storagePool }
func (e *Entities) DiskLibrary() cvapi.DiskLibrary     { return e.diskLibrary }
func (e *Entities) Agents() cvapi.Agents               { return e.agents }
func (e *Entities) Instances() cvapi.Instances         { return e.instances }
func (e *Entities) Backupsets() cvapi.Backupsets       { return e.backupsets }
func (e *Entities) Subclients() cvapi.Subclients       { return e.subclients }
func (e *Entities) JobController() cvapi.JobController { return e.jobs }

// Binding is what an entity_type label addresses. Singular and Plural are
// nil when not reachable from the resolved entities.
type Binding struct {
	Label    string
	Kind     cvapi.Kind
	Singular any
	Plural   any
}

type labelInfo struct {
	kind   cvapi.Kind
	plural bool
}

var labels = map[string]labelInfo{
	"":              {cvapi.KindCommcell, false},
	"commcell":      {cvapi.KindCommcell, false},
	"client":        {cvapi.KindClient, false},
	"clients":       {cvapi.KindClient, true},
	"clientgroup":   {cvapi.KindClientGroup, false},
	"clientgroups":  {cvapi.KindClientGroup, true},
	"agent":         {cvapi.KindAgent, false},
	"agents":        {cvapi.KindAgent, true},
	"instance":      {cvapi.KindInstance, false},
	"instances":     {cvapi.KindInstance, true},
	"backupset":     {cvapi.KindBackupset, false},
	"backupsets":    {cvapi.KindBackupset, true},
	"subclient":     {cvapi.KindSubclient, false},
	"subclients":    {cvapi.KindSubclient, true},
	"job":           {cvapi.KindJob, false},
	"jobs":          {cvapi.KindJob, true},
	"jobcontroller": {cvapi.KindJob, true},
	"mediaagent":    {cvapi.KindMediaAgent, false},
	"mediaagents":   {cvapi.KindMediaAgent, true},
	"storagepool":   {cvapi.KindStoragePool, false},
	"storagepools":  {cvapi.KindStoragePool, true},
	"disklibrary":   {cvapi.KindDiskLibrary, false},
	"disklibraries": {cvapi.KindDiskLibrary, true},
}

// NormalizeLabel lowercases a label and drops '_', '-' and spaces.
func NormalizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(label)))
}

// KnownLabels lists the normalized labels Binding accepts, sorted.
func KnownLabels() []string {
	out := make([]string, 0, len(labels))
	for l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// KindOf reports the node kind a label addresses and whether the label
// names the plural collection.
func KindOf(label string) (cvapi.Kind, bool, error) {
	info, ok := labels[NormalizeLabel(label)]
	if !ok {
		return "", false, &UnknownEntityTypeError{Label: label}
	}
	return info.kind, info.plural, nil
}

// Binding maps an entity_type label to its singular and plural targets.
// A plural label binds only the plural target.
func (e *Entities) Binding(label string) (Binding, error) {
	kind, pluralOnly, err := KindOf(label)
	if err != nil {
		return Binding{}, err
	}
	b := Binding{Label: label, Kind: kind}
	var singular, plural any
	switch kind {
	case cvapi.KindCommcell:
		b.Singular = e.session
		return b, nil
	case cvapi.KindClient:
		singular, plural = e.client, e.clients
	case cvapi.KindClientGroup:
		singular, plural = e.clientGroup, e.clientGroups
	case cvapi.KindAgent:
		singular, plural = e.agent, e.agents
	case cvapi.KindInstance:
		singular, plural = e.instance, e.instances
	case cvapi.KindBackupset:
		singular, plural = e.backupset, e.backupsets
	case cvapi.KindSubclient:
		singular, plural = e.subclient, e.subclients
	case cvapi.KindJob:
		singular, plural = e.job, e.jobs
	case cvapi.KindMediaAgent:
		singular, plural = e.mediaAgent, e.mediaAgents
	case cvapi.KindStoragePool:
		singular, plural = e.storagePool, e.storagePools
	case cvapi.KindDiskLibrary:
		singular, plural = e.diskLibrary, e.diskLibraries
	}
	if !pluralOnly {
		b.Singular = singular
	}
	b.Plural = plural
	return b, nil
}

// UnknownEntityTypeError reports an entity_type label outside the fixed set.
type UnknownEntityTypeError struct{ Label string }

func (e *UnknownEntityTypeError) Error() string {
	return "unknown entity_type: " + e.Label
}
