package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"commvault-ops/src/cvapi"
)

var backupLevels = []string{"Full", "Incremental", "Differential", "Synthetic_full"}

func method[T any](name, doc string, mutating bool, params []Param, fn func(ctx context.Context, t T, a Args) (any, error)) *Member {
	return &Member{
		Name: name, Kind: Method, Params: params, Mutating: mutating, Doc: doc,
		call: func(ctx context.Context, target any, a Args) (any, error) {
			t, ok := target.(T)
			if !ok {
				return nil, fmt.Errorf("%s cannot run on %T", name, target)
			}
			return fn(ctx, t, a)
		},
	}
}

func getter[T any](name, doc string, fn func(ctx context.Context, t T) (any, error)) *Member {
	return method(name, doc, false, nil, func(ctx context.Context, t T, _ Args) (any, error) { return fn(ctx, t) })
}

func field[T any](name, doc string, fn func(t T) any) *Member {
	return getter(name, doc, func(_ context.Context, t T) (any, error) { return fn(t), nil })
}

func property[T any](name, doc string, p Param, fn func(ctx context.Context, t T, v any) error) *Member {
	p.Name = name
	return &Member{
		Name: name, Kind: Property, Params: []Param{p}, Mutating: true, Doc: doc,
		set: func(ctx context.Context, target any, v any) error {
			t, ok := target.(T)
			if !ok {
				return fmt.Errorf("%s cannot be set on %T", name, target)
			}
			return fn(ctx, t, v)
		},
	}
}

func toggles[T interface {
	EnableBackup(context.Context) error
	DisableBackup(context.Context) error
}](noun string) []*Member {
	return []*Member{
		method("enable_backup", "Enable backup activity on the "+noun+".", true, nil, func(ctx context.Context, t T, _ Args) (any, error) {
			return nil, t.EnableBackup(ctx)
		}),
		method("disable_backup", "Disable backup activity on the "+noun+".", true, nil, func(ctx context.Context, t T, _ Args) (any, error) {
			return nil, t.DisableBackup(ctx)
		}),
	}
}

func description[T interface {
	SetDescription(context.Context, string) error
}](noun string) *Member {
	return property("description", "Set the "+noun+" description.", Param{Type: String}, func(ctx context.Context, t T, v any) error {
		return t.SetDescription(ctx, v.(string))
	})
}

func identity[T cvapi.Node](prefix, noun string) []*Member {
	return []*Member{
		field(prefix+"_id", "The "+noun+" id.", func(t T) any { return t.ID() }),
		field(prefix+"_name", "The "+noun+" name.", func(t T) any { return t.Name() }),
		field("properties", "The "+noun+" properties document.", func(t T) any { return t.Properties() }),
	}
}

// collection builds the listing members every plural target has.
func collection[T cvapi.Node](resource, allName, hasName, nameParam string) []*Member {
	return []*Member{
		getter(allName, "Map of every "+resource+" name to its id.", func(ctx context.Context, c cvapi.Collection[T]) (any, error) {
			refs, err := c.All(ctx)
			if err != nil {
				return nil, err
			}
			out := make(map[string]string, len(refs))
			for _, r := range refs {
				out[strings.ToLower(r.Name)] = r.ID
			}
			return out, nil
		}),
		method(hasName, "Whether a "+resource+" with the given name exists.", false,
			[]Param{{Name: nameParam, Type: String, Required: true}},
			func(ctx context.Context, c cvapi.Collection[T], a Args) (any, error) {
				_, err := c.Get(ctx, a.String(nameParam))
				var nf *cvapi.NotFoundError
				if errors.As(err, &nf) {
					return false, nil
				}
				return err == nil, err
			}),
		method("get", "Look up a "+resource+" by name.", false,
			[]Param{{Name: "name", Type: String, Required: true}},
			func(ctx context.Context, c cvapi.Collection[T], a Args) (any, error) {
				return c.Get(ctx, a.String("name"))
			}),
	}
}

func summaryMap(s cvapi.JobSummary) map[string]any {
	m := map[string]any{
		"job_id":           s.JobID,
		"job_type":         s.JobType,
		"status":           s.Status,
		"phase":            s.Phase,
		"backup_level":     s.BackupLevel,
		"percent_complete": s.PercentComplete,
		"pending_reason":   s.PendingReason,
		"delay_reason":     s.DelayReason,
		"client_name":      s.ClientName,
		"subclient_name":   s.SubclientName,
		"start_time":       "",
		"end_time":         "",
	}
	if !s.StartTime.IsZero() {
		m["start_time"] = s.StartTime.Format(time.RFC3339)
	}
	if !s.EndTime.IsZero() {
		m["end_time"] = s.EndTime.Format(time.RFC3339)
	}
	return m
}

func jobListing(name string, category cvapi.JobCategory, lookup bool) *Member {
	params := []Param{
		{Name: "client_name", Type: String, Default: ""},
		{Name: "job_filter", Type: String, Default: ""},
	}
	if lookup {
		params = append(params, Param{Name: "lookup_time", Type: Int, Default: 24})
	}
	return method(name, "Map of job id to summary for "+strings.ToLower(string(category))+" jobs.", false, params,
		func(ctx context.Context, jc cvapi.JobController, a Args) (any, error) {
			filter := cvapi.JobFilter{Category: category, ClientName: a.String("client_name"), JobTypes: a.String("job_filter")}
			if lookup {
				filter.LookupTime = time.Duration(a.Int("lookup_time")) * time.Hour
			}
			jobs, err := jc.List(ctx, filter)
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, len(jobs))
			for _, j := range jobs {
				out[j.JobID] = summaryMap(j)
			}
			return out, nil
		})
}

func jobStatus(name, doc string, pick func(cvapi.JobSummary) any) *Member {
	return getter(name, doc, func(ctx context.Context, j cvapi.Job) (any, error) {
		s, err := j.Summary(ctx)
		if err != nil {
			return nil, err
		}
		return pick(s), nil
	})
}

func jobAction(name, doc string, fn func(cvapi.Job, context.Context, bool) error) *Member {
	return method(name, doc, true, []Param{{Name: "wait", Type: Bool, Default: false}},
		func(ctx context.Context, j cvapi.Job, a Args) (any, error) {
			return nil, fn(j, ctx, a.Bool("wait"))
		})
}

func restoreParams(outOfPlace bool) []Param {
	params := []Param{
		{Name: "paths", Type: StringList, Required: true},
		{Name: "overwrite", Type: Bool, Default: true},
		{Name: "restore_data_and_acl", Type: Bool, Default: true},
		{Name: "copy_precedence", Type: Int, Default: 0},
	}
	if outOfPlace {
		params = append(params,
			Param{Name: "client", Type: String, Required: true},
			Param{Name: "destination_path", Type: String, Required: true},
		)
	}
	return params
}

func restoreOptions(a Args) cvapi.RestoreOptions {
	return cvapi.RestoreOptions{
		Paths:             a.Strings("paths"),
		Overwrite:         a.Bool("overwrite"),
		RestoreDataAndACL: a.Bool("restore_data_and_acl"),
		CopyPrecedence:    a.Int("copy_precedence"),
		Client:            a.String("client"),
		DestinationPath:   a.String("destination_path"),
	}
}

type registry map[cvapi.Kind]map[string]*Member

func (r registry) add(kind cvapi.Kind, members ...*Member) {
	if r[kind] == nil {
		r[kind] = map[string]*Member{}
	}
	for _, m := range members {
		r[kind][m.Name] = m
	}
}

var singulars, plurals = registry{}, registry{}

func init() {
	singulars.add(cvapi.KindCommcell,
		field("webconsole_hostname", "Webconsole the session is bound to.", func(s cvapi.Session) any { return s.WebconsoleHostname() }),
		getter("commserv_name", "CommServe name.", func(ctx context.Context, s cvapi.Session) (any, error) {
			info, err := s.CommServ(ctx)
			return info.Name, err
		}),
		getter("commserv_hostname", "CommServe hostname.", func(ctx context.Context, s cvapi.Session) (any, error) {
			info, err := s.CommServ(ctx)
			return info.Hostname, err
		}),
		getter("commserv_version", "CommServe version.", func(ctx context.Context, s cvapi.Session) (any, error) {
			info, err := s.CommServ(ctx)
			return info.Version, err
		}),
	)

	singulars.add(cvapi.KindClient, identity[cvapi.Client]("client", "client")...)
	singulars.add(cvapi.KindClient, toggles[cvapi.Client]("client")...)
	singulars.add(cvapi.KindClient,
		field("client_hostname", "The client hostname.", func(c cvapi.Client) any { return c.Hostname() }),
		getter("check_readiness", "Whether the client is ready.", func(ctx context.Context, c cvapi.Client) (any, error) {
			return c.CheckReadiness(ctx)
		}),
		description[cvapi.Client]("client"),
	)
	plurals.add(cvapi.KindClient, collection[cvapi.Client]("client", "all_clients", "has_client", "client_name")...)

	singulars.add(cvapi.KindClientGroup, identity[cvapi.ClientGroup]("clientgroup", "client group")...)
	singulars.add(cvapi.KindClientGroup, toggles[cvapi.ClientGroup]("client group")...)
	singulars.add(cvapi.KindClientGroup,
		getter("associated_clients", "Names of the clients in the group.", func(ctx context.Context, g cvapi.ClientGroup) (any, error) {
			return g.AssociatedClients(ctx)
		}),
		description[cvapi.ClientGroup]("client group"),
	)
	plurals.add(cvapi.KindClientGroup, collection[cvapi.ClientGroup]("client group", "all_clientgroups", "has_clientgroup", "clientgroup_name")...)

	singulars.add(cvapi.KindAgent, identity[cvapi.Agent]("agent", "agent")...)
	singulars.add(cvapi.KindAgent, toggles[cvapi.Agent]("agent")...)
	plurals.add(cvapi.KindAgent, collection[cvapi.Agent]("agent", "all_agents", "has_agent", "agent_name")...)

	singulars.add(cvapi.KindInstance, identity[cvapi.Instance]("instance", "instance")...)
	plurals.add(cvapi.KindInstance, collection[cvapi.Instance]("instance", "all_instances", "has_instance", "instance_name")...)

	singulars.add(cvapi.KindBackupset, identity[cvapi.Backupset]("backupset", "backup set")...)
	singulars.add(cvapi.KindBackupset,
		method("backup", "Back up every subclient of the backup set; returns the job ids.", true,
			[]Param{{Name: "backup_level", Type: String, Default: "Incremental", Choices: backupLevels}},
			func(ctx context.Context, b cvapi.Backupset, a Args) (any, error) {
				return b.Backup(ctx, a.String("backup_level"))
			}),
		description[cvapi.Backupset]("backup set"),
	)
	plurals.add(cvapi.KindBackupset, collection[cvapi.Backupset]("backup set", "all_backupsets", "has_backupset", "backupset_name")...)
	plurals.add(cvapi.KindBackupset,
		getter("default_backup_set", "Name of the agent's default backup set.", func(ctx context.Context, bs cvapi.Backupsets) (any, error) {
			return bs.DefaultBackupset(ctx)
		}),
	)

	singulars.add(cvapi.KindSubclient, identity[cvapi.Subclient]("subclient", "subclient")...)
	singulars.add(cvapi.KindSubclient, toggles[cvapi.Subclient]("subclient")...)
	singulars.add(cvapi.KindSubclient,
		field("is_backup_enabled", "Whether backups are enabled.", func(s cvapi.Subclient) any { return s.IsBackupEnabled() }),
		method("backup", "Run a backup; returns the job id.", true,
			[]Param{
				{Name: "backup_level", Type: String, Default: "Incremental", Choices: backupLevels},
				{Name: "incremental_backup", Type: Bool, Default: false},
				{Name: "incremental_level", Type: String, Default: "BEFORE_SYNTH", Choices: []string{"BEFORE_SYNTH", "AFTER_SYNTH"}},
			},
			func(ctx context.Context, s cvapi.Subclient, a Args) (any, error) {
				return s.Backup(ctx, cvapi.BackupOptions{
					Level:            a.String("backup_level"),
					Incremental:      a.Bool("incremental_backup"),
					IncrementalLevel: a.String("incremental_level"),
				})
			}),
		method("restore_in_place", "Restore paths to their original location; returns the job id.", true, restoreParams(false),
			func(ctx context.Context, s cvapi.Subclient, a Args) (any, error) {
				return s.RestoreInPlace(ctx, restoreOptions(a))
			}),
		method("restore_out_of_place", "Restore paths to another client and path; returns the job id.", true, restoreParams(true),
			func(ctx context.Context, s cvapi.Subclient, a Args) (any, error) {
				return s.RestoreOutOfPlace(ctx, restoreOptions(a))
			}),
		description[cvapi.Subclient]("subclient"),
		property("content", "Replace the subclient content paths.", Param{Type: StringList}, func(ctx context.Context, s cvapi.Subclient, v any) error {
			return s.SetContent(ctx, v.([]string))
		}),
		property("data_readers", "Set the number of data readers.", Param{Type: Int}, func(ctx context.Context, s cvapi.Subclient, v any) error {
			return s.SetDataReaders(ctx, v.(int))
		}),
	)
	plurals.add(cvapi.KindSubclient, collection[cvapi.Subclient]("subclient", "all_subclients", "has_subclient", "subclient_name")...)
	plurals.add(cvapi.KindSubclient,
		method("add", "Create a subclient.", true,
			[]Param{
				{Name: "subclient_name", Type: String, Required: true},
				{Name: "storage_policy", Type: String, Required: true},
				{Name: "description", Type: String, Default: ""},
			},
			func(ctx context.Context, ss cvapi.Subclients, a Args) (any, error) {
				return ss.Add(ctx, cvapi.SubclientSpec{
					Name:          a.String("subclient_name"),
					StoragePolicy: a.String("storage_policy"),
					Description:   a.String("description"),
				})
			}),
		method("delete", "Delete a subclient.", true,
			[]Param{{Name: "subclient_name", Type: String, Required: true}},
			func(ctx context.Context, ss cvapi.Subclients, a Args) (any, error) {
				return nil, ss.Delete(ctx, a.String("subclient_name"))
			}),
	)

	singulars.add(cvapi.KindJob,
		field("job_id", "The job id.", func(j cvapi.Job) any { return j.JobID() }),
		jobStatus("status", "Current job status.", func(s cvapi.JobSummary) any { return s.Status }),
		jobStatus("job_type", "Job type.", func(s cvapi.JobSummary) any { return s.JobType }),
		jobStatus("phase", "Current job phase.", func(s cvapi.JobSummary) any { return s.Phase }),
		jobStatus("percent_complete", "Progress in percent.", func(s cvapi.JobSummary) any { return s.PercentComplete }),
		jobStatus("pending_reason", "Why the job is pending.", func(s cvapi.JobSummary) any { return s.PendingReason }),
		jobStatus("delay_reason", "Why the job is delayed.", func(s cvapi.JobSummary) any { return s.DelayReason }),
		jobStatus("is_finished", "Whether the job has finished.", func(s cvapi.JobSummary) any { return cvapi.IsFinished(s.Status) }),
		jobStatus("summary", "Job summary.", func(s cvapi.JobSummary) any { return summaryMap(s) }),
		jobStatus("details", "Job summary.", func(s cvapi.JobSummary) any { return summaryMap(s) }),
		method("wait_for_completion", "Wait for the job to finish; true when it succeeded. timeout is in minutes, 0 waits forever.", false,
			[]Param{{Name: "timeout", Type: Int, Default: 30}},
			func(ctx context.Context, j cvapi.Job, a Args) (any, error) {
				return j.WaitForCompletion(ctx, time.Duration(a.Int("timeout"))*time.Minute, a.progress)
			}),
		jobAction("kill", "Kill the job.", cvapi.Job.Kill),
		jobAction("pause", "Suspend the job.", cvapi.Job.Pause),
		jobAction("resume", "Resume a suspended job.", cvapi.Job.Resume),
	)
	plurals.add(cvapi.KindJob,
		jobListing("active_jobs", cvapi.JobsActive, false),
		jobListing("finished_jobs", cvapi.JobsFinished, true),
		jobListing("all_jobs", cvapi.JobsAll, true),
		method("get", "Look up a job by id.", false,
			[]Param{{Name: "job_id", Type: String, Required: true}},
			func(ctx context.Context, jc cvapi.JobController, a Args) (any, error) {
				return jc.Get(ctx, a.String("job_id"))
			}),
	)

	singulars.add(cvapi.KindMediaAgent, identity[cvapi.MediaAgent]("media_agent", "media agent")...)
	singulars.add(cvapi.KindMediaAgent,
		field("is_online", "Whether the media agent is online.", func(m cvapi.MediaAgent) any { return m.IsOnline() }),
	)
	plurals.add(cvapi.KindMediaAgent, collection[cvapi.MediaAgent]("media agent", "all_media_agents", "has_media_agent", "media_agent_name")...)

	singulars.add(cvapi.KindStoragePool, identity[cvapi.StoragePool]("storage_pool", "storage pool")...)
	singulars.add(cvapi.KindStoragePool,
		field("storage_pool_properties", "The storage pool properties document.", func(p cvapi.StoragePool) any { return p.Properties() }),
	)
	plurals.add(cvapi.KindStoragePool, collection[cvapi.StoragePool]("storage pool", "all_storage_pools", "has_storage_pool", "storage_pool_name")...)

	singulars.add(cvapi.KindDiskLibrary, identity[cvapi.DiskLibrary]("library", "disk library")...)
	singulars.add(cvapi.KindDiskLibrary,
		field("library_properties", "The disk library properties document.", func(l cvapi.DiskLibrary) any { return l.Properties() }),
	)
	plurals.add(cvapi.KindDiskLibrary, collection[cvapi.DiskLibrary]("disk library", "all_disk_libraries", "has_library", "library_name")...)
}

// Lookup finds a catalog member by kind, target and name.
func Lookup(kind cvapi.Kind, plural bool, name string) (*Member, bool) {
	r := singulars
	if plural {
		r = plurals
	}
	m, ok := r[kind][name]
	return m, ok
}

// Entry is one row of the operation catalog.
type Entry struct {
	Kind   cvapi.Kind
	Plural bool
	Member *Member
}

// Catalog lists every member, ordered by kind, then singular before
// plural, then name. An empty kind lists all kinds.
func Catalog(kind cvapi.Kind) []Entry {
	var out []Entry
	for _, r := range []struct {
		reg    registry
		plural bool
	}{{singulars, false}, {plurals, true}} {
		for k, members := range r.reg {
			if kind != "" && k != kind {
				continue
			}
			for _, m := range members {
				out = append(out, Entry{Kind: k, Plural: r.plural, Member: m})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Plural != b.Plural {
			return !a.Plural
		}
		return a.Member.Name < b.Member.Name
	})
	return out
}
