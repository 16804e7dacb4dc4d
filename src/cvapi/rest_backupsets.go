package cvapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type restInstances struct {
	c      *restClient
	client EntityRef
	agent  EntityRef
}

func (is *restInstances) rows(ctx context.Context) ([]EntityRef, []Document, error) {
	var resp struct {
		InstanceProperties []map[string]any `json:"instanceProperties"`
	}
	q := url.Values{"clientId": {is.client.ID}}
	if err := is.c.do(ctx, http.MethodGet, "Instance", q, nil, &resp); err != nil {
		return nil, nil, err
	}
	var refs []EntityRef
	var docs []Document
	for _, p := range resp.InstanceProperties {
		inst, _ := p["instance"].(map[string]any)
		if app := stringField(inst, "applicationId"); app != "" && app != is.agent.ID {
			continue
		}
		refs = append(refs, EntityRef{Name: stringField(inst, "instanceName"), ID: stringField(inst, "instanceId")})
		docs = append(docs, Document(p))
	}
	return refs, docs, nil
}

func (is *restInstances) All(ctx context.Context) ([]EntityRef, error) {
	refs, _, err := is.rows(ctx)
	return refs, err
}

func (is *restInstances) Get(ctx context.Context, name string) (Instance, error) {
	refs, docs, err := is.rows(ctx)
	if err != nil {
		return nil, err
	}
	for i, r := range refs {
		if strings.EqualFold(r.Name, name) {
			return &restInstanceNode{Document: docs[i], c: is.c, client: is.client, agent: is.agent, ref: r}, nil
		}
	}
	return nil, &NotFoundError{Resource: "instance", Name: name}
}

type restInstanceNode struct {
	Document
	c      *restClient
	client EntityRef
	agent  EntityRef
	ref    EntityRef
}

var _ Instance = (*restInstanceNode)(nil)

func (n *restInstanceNode) Name() string   { return n.ref.Name }
func (n *restInstanceNode) ID() string     { return n.ref.ID }
func (n *restInstanceNode) String() string { return describe("Instance", "Instance", n.ref.Name) }

func (n *restInstanceNode) Subclients() Subclients {
	return &restSubclients{c: n.c, client: n.client, agent: n.agent, instance: n.ref, parentKey: "instanceId", parentID: n.ref.ID}
}

type restBackupsets struct {
	c      *restClient
	client EntityRef
	agent  EntityRef
}

type backupsetRow struct {
	ref       EntityRef
	instance  EntityRef
	isDefault bool
	doc       Document
}

func (bs *restBackupsets) rows(ctx context.Context) ([]backupsetRow, error) {
	var resp struct {
		BackupsetProperties []map[string]any `json:"backupsetProperties"`
	}
	q := url.Values{"clientId": {bs.client.ID}, "propertyLevel": {"AllProperties"}}
	if err := bs.c.do(ctx, http.MethodGet, "Backupset", q, nil, &resp); err != nil {
		return nil, err
	}
	var out []backupsetRow
	for _, p := range resp.BackupsetProperties {
		ent, _ := p["backupSetEntity"].(map[string]any)
		if app := stringField(ent, "applicationId"); app != "" && app != bs.agent.ID {
			continue
		}
		common, _ := p["commonBackupSetProperties"].(map[string]any)
		out = append(out, backupsetRow{
			ref:       EntityRef{Name: stringField(ent, "backupsetName"), ID: stringField(ent, "backupsetId")},
			instance:  EntityRef{Name: stringField(ent, "instanceName"), ID: stringField(ent, "instanceId")},
			isDefault: stringField(common, "isDefaultBackupSet") == "true",
			doc:       Document(p),
		})
	}
	return out, nil
}

func (bs *restBackupsets) All(ctx context.Context) ([]EntityRef, error) {
	rows, err := bs.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ref)
	}
	return out, nil
}

func (bs *restBackupsets) Get(ctx context.Context, name string) (Backupset, error) {
	rows, err := bs.rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.ref.Name, name) {
			return &restBackupsetNode{Document: r.doc, c: bs.c, client: bs.client, agent: bs.agent, instance: r.instance, ref: r.ref}, nil
		}
	}
	return nil, &NotFoundError{Resource: "backupset", Name: name}
}

func (bs *restBackupsets) DefaultBackupset(ctx context.Context) (string, error) {
	rows, err := bs.rows(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		if r.isDefault {
			return r.ref.Name, nil
		}
	}
	return "", &NotFoundError{Resource: "backupset", Name: "default"}
}

type restBackupsetNode struct {
	Document
	c        *restClient
	client   EntityRef
	agent    EntityRef
	instance EntityRef
	ref      EntityRef
}

var _ Backupset = (*restBackupsetNode)(nil)

func (n *restBackupsetNode) Name() string   { return n.ref.Name }
func (n *restBackupsetNode) ID() string     { return n.ref.ID }
func (n *restBackupsetNode) String() string { return describe("Backupset", "Backupset", n.ref.Name) }

func (n *restBackupsetNode) Subclients() Subclients {
	return &restSubclients{c: n.c, client: n.client, agent: n.agent, instance: n.instance, backupset: n.ref, parentKey: "backupsetId", parentID: n.ref.ID}
}

func (n *restBackupsetNode) Backup(ctx context.Context, level string) ([]Job, error) {
	subs := n.Subclients().(*restSubclients)
	rows, err := subs.rows(ctx)
	if err != nil {
		return nil, err
	}
	var jobs []Job
	for _, r := range rows {
		node := &restSubclientNode{Document: r.doc, c: n.c, ref: r.ref}
		job, err := node.Backup(ctx, BackupOptions{Level: level})
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (n *restBackupsetNode) SetDescription(ctx context.Context, description string) error {
	payload := map[string]any{
		"backupsetProperties": map[string]any{
			"commonBackupSetProperties": map[string]any{"userDescription": description},
		},
	}
	return n.c.do(ctx, http.MethodPost, "Backupset/"+n.ref.ID, nil, payload, nil)
}

type restSubclients struct {
	c         *restClient
	client    EntityRef
	agent     EntityRef
	instance  EntityRef
	backupset EntityRef
	parentKey string
	parentID  string
}

type subclientRow struct {
	ref EntityRef
	doc Document
}

func (ss *restSubclients) rows(ctx context.Context) ([]subclientRow, error) {
	var resp struct {
		SubClientProperties []map[string]any `json:"subClientProperties"`
	}
	q := url.Values{"clientId": {ss.client.ID}, "applicationId": {ss.agent.ID}}
	if err := ss.c.do(ctx, http.MethodGet, "Subclient", q, nil, &resp); err != nil {
		return nil, err
	}
	var out []subclientRow
	for _, p := range resp.SubClientProperties {
		ent, _ := p["subClientEntity"].(map[string]any)
		if stringField(ent, ss.parentKey) != ss.parentID {
			continue
		}
		out = append(out, subclientRow{
			ref: EntityRef{Name: stringField(ent, "subclientName"), ID: stringField(ent, "subclientId")},
			doc: Document(p),
		})
	}
	return out, nil
}

func (ss *restSubclients) All(ctx context.Context) ([]EntityRef, error) {
	rows, err := ss.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ref)
	}
	return out, nil
}

func (ss *restSubclients) Get(ctx context.Context, name string) (Subclient, error) {
	rows, err := ss.rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.ref.Name, name) {
			return &restSubclientNode{Document: r.doc, c: ss.c, ref: r.ref}, nil
		}
	}
	return nil, &NotFoundError{Resource: "subclient", Name: name}
}

func (ss *restSubclients) Add(ctx context.Context, spec SubclientSpec) (Subclient, error) {
	entity := map[string]any{
		"clientName":    ss.client.Name,
		"appName":       ss.agent.Name,
		"subclientName": spec.Name,
	}
	if ss.instance.Name != "" {
		entity["instanceName"] = ss.instance.Name
	}
	if ss.backupset.Name != "" {
		entity["backupsetName"] = ss.backupset.Name
	}
	payload := map[string]any{
		"subClientProperties": map[string]any{
			"contentOperationType": 2,
			"subClientEntity":      entity,
			"commonProperties": map[string]any{
				"description": spec.Description,
				"storageDevice": map[string]any{
					"dataBackupStoragePolicy": map[string]any{"storagePolicyName": spec.StoragePolicy},
				},
			},
		},
	}
	if err := ss.c.do(ctx, http.MethodPost, "Subclient", nil, payload, nil); err != nil {
		return nil, err
	}
	return ss.Get(ctx, spec.Name)
}

func (ss *restSubclients) Delete(ctx context.Context, name string) error {
	sc, err := ss.Get(ctx, name)
	if err != nil {
		return err
	}
	return ss.c.do(ctx, http.MethodDelete, "Subclient/"+sc.ID(), nil, nil, nil)
}

type restSubclientNode struct {
	Document
	c   *restClient
	ref EntityRef
}

var _ Subclient = (*restSubclientNode)(nil)

func (n *restSubclientNode) Name() string   { return n.ref.Name }
func (n *restSubclientNode) ID() string     { return n.ref.ID }
func (n *restSubclientNode) String() string { return describe("Subclient", "Subclient", n.ref.Name) }

func (n *restSubclientNode) entity() map[string]any {
	ent, _ := n.Document["subClientEntity"].(map[string]any)
	return ent
}

func (n *restSubclientNode) IsBackupEnabled() bool {
	common, _ := n.Document["commonProperties"].(map[string]any)
	if v, ok := common["enableBackup"].(bool); ok {
		return v
	}
	return true
}

func (n *restSubclientNode) Backup(ctx context.Context, opts BackupOptions) (Job, error) {
	level := opts.Level
	if level == "" {
		level = "Incremental"
	}
	q := url.Values{"backupLevel": {level}}
	if strings.EqualFold(level, "Synthetic_full") {
		q.Set("runIncrementalBackup", strconv.FormatBool(opts.Incremental))
		if opts.IncrementalLevel != "" {
			q.Set("incrementalLevel", opts.IncrementalLevel)
		}
	}
	ids, err := n.c.jobIDs(ctx, http.MethodPost, "Subclient/"+n.ref.ID+"/action/backup", q, nil)
	if err != nil {
		return nil, err
	}
	return &restJob{c: n.c, id: ids[0]}, nil
}

func (n *restSubclientNode) RestoreInPlace(ctx context.Context, opts RestoreOptions) (Job, error) {
	return n.restore(ctx, opts, true)
}

func (n *restSubclientNode) RestoreOutOfPlace(ctx context.Context, opts RestoreOptions) (Job, error) {
	return n.restore(ctx, opts, false)
}

func (n *restSubclientNode) restore(ctx context.Context, opts RestoreOptions, inPlace bool) (Job, error) {
	ids, err := n.c.jobIDs(ctx, http.MethodPost, "CreateTask", nil, restoreTask(n.entity(), opts, inPlace))
	if err != nil {
		return nil, err
	}
	return &restJob{c: n.c, id: ids[0]}, nil
}

// restoreTask builds the CreateTask request for a file-level restore.
func restoreTask(entity map[string]any, opts RestoreOptions, inPlace bool) map[string]any {
	destClient := stringField(entity, "clientName")
	if !inPlace {
		destClient = opts.Client
	}
	destination := map[string]any{
		"inPlace":    inPlace,
		"destClient": map[string]any{"clientName": destClient},
	}
	if !inPlace {
		destination["destPath"] = []string{opts.DestinationPath}
	}
	browse := map[string]any{
		"backupset": map[string]any{
			"clientName":    stringField(entity, "clientName"),
			"backupsetName": stringField(entity, "backupsetName"),
		},
	}
	if opts.CopyPrecedence > 0 {
		browse["mediaOption"] = map[string]any{
			"copyPrecedence": map[string]any{"copyPrecedenceApplicable": true, "copyPrecedence": opts.CopyPrecedence},
		}
	}
	return map[string]any{
		"taskInfo": map[string]any{
			"task":         map[string]any{"taskType": 1, "initiatedFrom": 1},
			"associations": []map[string]any{entity},
			"subTasks": []map[string]any{{
				"subTask": map[string]any{"subTaskType": 3, "operationType": 1001},
				"options": map[string]any{
					"restoreOptions": map[string]any{
						"browseOption": browse,
						"destination":  destination,
						"fileOption":   map[string]any{"sourceItem": opts.Paths},
						"commonOptions": map[string]any{
							"unconditionalOverwrite": opts.Overwrite,
						},
						"restoreACLsType": restoreACLsType(opts.RestoreDataAndACL),
					},
				},
			}},
		},
	}
}

func restoreACLsType(dataAndACL bool) int {
	if dataAndACL {
		return 3
	}
	return 1
}

func (n *restSubclientNode) EnableBackup(ctx context.Context) error {
	return n.update(ctx, map[string]any{"commonProperties": map[string]any{"enableBackup": true}})
}

func (n *restSubclientNode) DisableBackup(ctx context.Context) error {
	return n.update(ctx, map[string]any{"commonProperties": map[string]any{"enableBackup": false}})
}

func (n *restSubclientNode) SetDescription(ctx context.Context, description string) error {
	return n.update(ctx, map[string]any{"commonProperties": map[string]any{"description": description}})
}

func (n *restSubclientNode) SetContent(ctx context.Context, paths []string) error {
	content := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		content = append(content, map[string]any{"path": p})
	}
	return n.update(ctx, map[string]any{"content": content, "contentOperationType": 1})
}

func (n *restSubclientNode) SetDataReaders(ctx context.Context, readers int) error {
	return n.update(ctx, map[string]any{"commonProperties": map[string]any{"numberOfBackupStreams": readers}})
}

func (n *restSubclientNode) update(ctx context.Context, props map[string]any) error {
	return n.c.do(ctx, http.MethodPost, "Subclient/"+n.ref.ID, nil, map[string]any{"subClientProperties": props}, nil)
}
