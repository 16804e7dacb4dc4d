package cvapi

import (
	"context"
	"net/http"
	"net/url"
)

type restClients struct{ c *restClient }

func (cs *restClients) All(ctx context.Context) ([]EntityRef, error) {
	var resp struct {
		ClientProperties []struct {
			Client struct {
				ClientEntity struct {
					ClientID   flexID `json:"clientId"`
					ClientName string `json:"clientName"`
					HostName   string `json:"hostName"`
				} `json:"clientEntity"`
			} `json:"client"`
		} `json:"clientProperties"`
	}
	if err := cs.c.do(ctx, http.MethodGet, "Client", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(resp.ClientProperties))
	for _, p := range resp.ClientProperties {
		e := p.Client.ClientEntity
		out = append(out, EntityRef{Name: e.ClientName, ID: string(e.ClientID), Hostname: e.HostName})
	}
	return out, nil
}

func (cs *restClients) Get(ctx context.Context, name string) (Client, error) {
	refs, err := cs.All(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := findByName(refs, "client", name)
	if err != nil {
		return nil, err
	}
	doc, err := cs.c.getDocument(ctx, "Client/"+ref.ID, "clientProperties")
	if err != nil {
		return nil, err
	}
	return &restClientNode{Document: doc, c: cs.c, ref: ref}, nil
}

type restClientNode struct {
	Document
	c   *restClient
	ref EntityRef
}

var _ Client = (*restClientNode)(nil)

func (n *restClientNode) Name() string     { return n.ref.Name }
func (n *restClientNode) ID() string       { return n.ref.ID }
func (n *restClientNode) Hostname() string { return n.ref.Hostname }
func (n *restClientNode) Agents() Agents   { return &restAgents{c: n.c, client: n.ref} }
func (n *restClientNode) String() string   { return describe("Client", "Client", n.ref.Name) }

func (n *restClientNode) CheckReadiness(ctx context.Context) (bool, error) {
	var resp struct {
		IsClientReady bool `json:"isClientReady"`
	}
	if err := n.c.do(ctx, http.MethodGet, "Client/"+n.ref.ID+"/CheckReadiness", nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.IsClientReady, nil
}

func (n *restClientNode) EnableBackup(ctx context.Context) error  { return n.setBackup(ctx, true) }
func (n *restClientNode) DisableBackup(ctx context.Context) error { return n.setBackup(ctx, false) }

func (n *restClientNode) setBackup(ctx context.Context, enable bool) error {
	return n.update(ctx, map[string]any{
		"clientProps": map[string]any{"clientActivityControl": activityControl(enable)},
	})
}

func (n *restClientNode) SetDescription(ctx context.Context, description string) error {
	return n.update(ctx, map[string]any{
		"client": map[string]any{"clientDescription": description},
	})
}

func (n *restClientNode) update(ctx context.Context, props map[string]any) error {
	return n.c.do(ctx, http.MethodPost, "Client/"+n.ref.ID, nil, map[string]any{"clientProperties": props}, nil)
}

type restClientGroups struct{ c *restClient }

func (gs *restClientGroups) All(ctx context.Context) ([]EntityRef, error) {
	var resp struct {
		Groups []struct {
			Name string `json:"name"`
			ID   flexID `json:"Id"`
		} `json:"groups"`
	}
	if err := gs.c.do(ctx, http.MethodGet, "ClientGroup", nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		out = append(out, EntityRef{Name: g.Name, ID: string(g.ID)})
	}
	return out, nil
}

func (gs *restClientGroups) Get(ctx context.Context, name string) (ClientGroup, error) {
	refs, err := gs.All(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := findByName(refs, "clientgroup", name)
	if err != nil {
		return nil, err
	}
	doc, err := gs.c.getDocument(ctx, "ClientGroup/"+ref.ID, "clientGroupDetail")
	if err != nil {
		return nil, err
	}
	return &restClientGroupNode{Document: doc, c: gs.c, ref: ref}, nil
}

type restClientGroupNode struct {
	Document
	c   *restClient
	ref EntityRef
}

var _ ClientGroup = (*restClientGroupNode)(nil)

func (n *restClientGroupNode) Name() string { return n.ref.Name }
func (n *restClientGroupNode) ID() string   { return n.ref.ID }
func (n *restClientGroupNode) String() string {
	return describe("ClientGroup", "ClientGroup", n.ref.Name)
}

func (n *restClientGroupNode) AssociatedClients(ctx context.Context) ([]string, error) {
	var resp struct {
		ClientGroupDetail struct {
			AssociatedClients []struct {
				ClientName string `json:"clientName"`
			} `json:"associatedClients"`
		} `json:"clientGroupDetail"`
	}
	if err := n.c.do(ctx, http.MethodGet, "ClientGroup/"+n.ref.ID, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.ClientGroupDetail.AssociatedClients))
	for _, c := range resp.ClientGroupDetail.AssociatedClients {
		out = append(out, c.ClientName)
	}
	return out, nil
}

func (n *restClientGroupNode) EnableBackup(ctx context.Context) error { return n.setBackup(ctx, true) }
func (n *restClientGroupNode) DisableBackup(ctx context.Context) error {
	return n.setBackup(ctx, false)
}

func (n *restClientGroupNode) setBackup(ctx context.Context, enable bool) error {
	return n.update(ctx, map[string]any{"clientGroupActivityControl": activityControl(enable)})
}

func (n *restClientGroupNode) SetDescription(ctx context.Context, description string) error {
	return n.update(ctx, map[string]any{"description": description})
}

func (n *restClientGroupNode) update(ctx context.Context, detail map[string]any) error {
	detail["clientGroup"] = map[string]any{"clientGroupName": n.ref.Name}
	payload := map[string]any{
		"clientGroupOperationType": 2,
		"clientGroupDetail":        detail,
	}
	return n.c.do(ctx, http.MethodPost, "ClientGroup/"+n.ref.ID, nil, payload, nil)
}

type restAgents struct {
	c      *restClient
	client EntityRef
}

type agentRow struct {
	ref EntityRef
	doc Document
}

func (as *restAgents) rows(ctx context.Context) ([]agentRow, error) {
	var resp struct {
		AgentProperties []map[string]any `json:"agentProperties"`
	}
	q := url.Values{"clientId": {as.client.ID}}
	if err := as.c.do(ctx, http.MethodGet, "Agent", q, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]agentRow, 0, len(resp.AgentProperties))
	for _, p := range resp.AgentProperties {
		ida, _ := p["idaEntity"].(map[string]any)
		out = append(out, agentRow{
			ref: EntityRef{Name: stringField(ida, "appName"), ID: stringField(ida, "applicationId")},
			doc: Document(p),
		})
	}
	return out, nil
}

func (as *restAgents) All(ctx context.Context) ([]EntityRef, error) {
	rows, err := as.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ref)
	}
	return out, nil
}

func (as *restAgents) Get(ctx context.Context, name string) (Agent, error) {
	rows, err := as.rows(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]EntityRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, r.ref)
	}
	ref, err := findByName(refs, "agent", name)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.ref == ref {
			return &restAgentNode{Document: r.doc, c: as.c, client: as.client, ref: ref}, nil
		}
	}
	return nil, &NotFoundError{Resource: "agent", Name: name}
}

type restAgentNode struct {
	Document
	c      *restClient
	client EntityRef
	ref    EntityRef
}

var _ Agent = (*restAgentNode)(nil)

func (n *restAgentNode) Name() string { return n.ref.Name }
func (n *restAgentNode) ID() string   { return n.ref.ID }
func (n *restAgentNode) String() string {
	return describe("Agent", "Agent", n.ref.Name) + " of Client: " + n.client.Name
}

func (n *restAgentNode) Instances() Instances {
	return &restInstances{c: n.c, client: n.client, agent: n.ref}
}

func (n *restAgentNode) Backupsets() Backupsets {
	return &restBackupsets{c: n.c, client: n.client, agent: n.ref}
}

func (n *restAgentNode) EnableBackup(ctx context.Context) error  { return n.setBackup(ctx, true) }
func (n *restAgentNode) DisableBackup(ctx context.Context) error { return n.setBackup(ctx, false) }

func (n *restAgentNode) setBackup(ctx context.Context, enable bool) error {
	payload := map[string]any{
		"association": map[string]any{
			"entity": []map[string]any{{"clientName": n.client.Name, "appName": n.ref.Name}},
		},
		"agentProperties": map[string]any{"idaActivityControl": activityControl(enable)},
	}
	return n.c.do(ctx, http.MethodPost, "Agent", nil, payload, nil)
}

// stringField reads a scalar field of a decoded JSON object as a string.
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}
