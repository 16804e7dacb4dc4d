package cvapi

import (
	"context"
	"net/http"
)

type restSession struct {
	c        *restClient
	hostname string
}

var _ Session = (*restSession)(nil)

func (s *restSession) AuthToken() string          { return s.c.token }
func (s *restSession) WebconsoleHostname() string { return s.hostname }

func (s *restSession) CommServ(ctx context.Context) (CommServInfo, error) {
	var resp struct {
		Commcell struct {
			CommCellName  string `json:"commCellName"`
			HostName      string `json:"hostName"`
			CSVersionInfo string `json:"csVersionInfo"`
		} `json:"commcell"`
	}
	if err := s.c.do(ctx, http.MethodGet, "CommServ", nil, nil, &resp); err != nil {
		return CommServInfo{}, err
	}
	return CommServInfo{
		Name:     resp.Commcell.CommCellName,
		Hostname: resp.Commcell.HostName,
		Version:  resp.Commcell.CSVersionInfo,
	}, nil
}

func (s *restSession) Clients() Clients             { return &restClients{c: s.c} }
func (s *restSession) ClientGroups() ClientGroups   { return &restClientGroups{c: s.c} }
func (s *restSession) JobController() JobController { return &restJobController{c: s.c} }
func (s *restSession) MediaAgents() MediaAgents     { return &restMediaAgents{c: s.c} }
func (s *restSession) StoragePools() StoragePools   { return &restStoragePools{c: s.c} }
func (s *restSession) DiskLibraries() DiskLibraries { return &restDiskLibraries{c: s.c} }

func (s *restSession) String() string {
	return describe("Commcell", "Commcell", s.hostname)
}
