package cvapi

import (
	"context"
	"net/http"
	"strings"
)

type restMediaAgents struct{ c *restClient }

type mediaAgentRow struct {
	ref    EntityRef
	online bool
	doc    Document
}

func (ms *restMediaAgents) rows(ctx context.Context) ([]mediaAgentRow, error) {
	var resp struct {
		MediaAgentList []map[string]any `json:"mediaAgentList"`
	}
	if err := ms.c.do(ctx, http.MethodGet, "V2/MediaAgents", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]mediaAgentRow, 0, len(resp.MediaAgentList))
	for _, m := range resp.MediaAgentList {
		ma, _ := m["mediaAgent"].(map[string]any)
		out = append(out, mediaAgentRow{
			ref:    EntityRef{Name: stringField(ma, "mediaAgentName"), ID: stringField(ma, "mediaAgentId")},
			online: stringField(m, "status") == "1",
			doc:    Document(m),
		})
	}
	return out, nil
}

func (ms *restMediaAgents) All(ctx context.Context) ([]EntityRef, error) {
	rows, err := ms.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ref)
	}
	return out, nil
}

func (ms *restMediaAgents) Get(ctx context.Context, name string) (MediaAgent, error) {
	rows, err := ms.rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.ref.Name, name) {
			return &restMediaAgentNode{Document: r.doc, ref: r.ref, online: r.online}, nil
		}
	}
	return nil, &NotFoundError{Resource: "mediaagent", Name: name}
}

type restMediaAgentNode struct {
	Document
	ref    EntityRef
	online bool
}

var _ MediaAgent = (*restMediaAgentNode)(nil)

func (n *restMediaAgentNode) Name() string   { return n.ref.Name }
func (n *restMediaAgentNode) ID() string     { return n.ref.ID }
func (n *restMediaAgentNode) IsOnline() bool { return n.online }
func (n *restMediaAgentNode) String() string { return describe("MediaAgent", "MediaAgent", n.ref.Name) }

type restStoragePools struct{ c *restClient }

func (ps *restStoragePools) All(ctx context.Context) ([]EntityRef, error) {
	var resp struct {
		StoragePoolList []struct {
			StoragePoolEntity struct {
				StoragePoolName string `json:"storagePoolName"`
				StoragePoolID   flexID `json:"storagePoolId"`
			} `json:"storagePoolEntity"`
		} `json:"storagePoolList"`
	}
	if err := ps.c.do(ctx, http.MethodGet, "StoragePool", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(resp.StoragePoolList))
	for _, p := range resp.StoragePoolList {
		e := p.StoragePoolEntity
		out = append(out, EntityRef{Name: e.StoragePoolName, ID: string(e.StoragePoolID)})
	}
	return out, nil
}

func (ps *restStoragePools) Get(ctx context.Context, name string) (StoragePool, error) {
	refs, err := ps.All(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := findByName(refs, "storagepool", name)
	if err != nil {
		return nil, err
	}
	doc, err := ps.c.getDocument(ctx, "StoragePool/"+ref.ID, "storagePoolDetails")
	if err != nil {
		return nil, err
	}
	return &restPlainNode{Document: doc, ref: ref, kind: "StoragePool"}, nil
}

type restDiskLibraries struct{ c *restClient }

func (ls *restDiskLibraries) All(ctx context.Context) ([]EntityRef, error) {
	var resp struct {
		Response []struct {
			EntityInfo struct {
				Name string `json:"name"`
				ID   flexID `json:"id"`
			} `json:"entityInfo"`
		} `json:"response"`
	}
	if err := ls.c.do(ctx, http.MethodGet, "Library", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(resp.Response))
	for _, l := range resp.Response {
		out = append(out, EntityRef{Name: l.EntityInfo.Name, ID: string(l.EntityInfo.ID)})
	}
	return out, nil
}

func (ls *restDiskLibraries) Get(ctx context.Context, name string) (DiskLibrary, error) {
	refs, err := ls.All(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := findByName(refs, "disklibrary", name)
	if err != nil {
		return nil, err
	}
	doc, err := ls.c.getDocument(ctx, "Library/"+ref.ID, "libraryInfo")
	if err != nil {
		return nil, err
	}
	return &restPlainNode{Document: doc, ref: ref, kind: "DiskLibrary"}, nil
}

// restPlainNode serves node kinds whose only behavior is their properties.
type restPlainNode struct {
	Document
	ref  EntityRef
	kind string
}

func (n *restPlainNode) Name() string   { return n.ref.Name }
func (n *restPlainNode) ID() string     { return n.ref.ID }
func (n *restPlainNode) String() string { return describe(n.kind, n.kind, n.ref.Name) }
