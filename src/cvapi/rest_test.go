package cvapi_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"commvault-ops/src/cvapi"
)

type apiCall struct {
	Method string
	Path   string
	Query  string
	Token  string
	Body   map[string]any
}

// fakeAPI serves canned JSON per "METHOD path" and records every request.
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]any
	status map[string]int
	calls  []apiCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{routes: map[string]any{}, status: map[string]int{}}
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	call := apiCall{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/webconsole/api/"),
		Query:  r.URL.RawQuery,
		Token:  r.Header.Get("Authtoken"),
	}
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		_ = json.Unmarshal(body, &call.Body)
	}
	a.calls = append(a.calls, call)
	key := call.Method + " " + call.Path
	if code, ok := a.status[key]; ok {
		w.WriteHeader(code)
	}
	resp, ok := a.routes[key]
	if !ok {
		if _, hasStatus := a.status[key]; !hasStatus {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *fakeAPI) last(method, path string) apiCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.calls) - 1; i >= 0; i-- {
		if a.calls[i].Method == method && a.calls[i].Path == path {
			return a.calls[i]
		}
	}
	return apiCall{}
}

func newConnector(t *testing.T, api *fakeAPI) (*cvapi.RESTConnector, string) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := cvapi.NewRESTConnector(nil, 5*time.Second, false)
	c.HTTPClient = srv.Client()
	c.RateLimit = rate.Inf
	c.PollInterval = time.Millisecond
	return c, srv.URL
}

func loggedIn(t *testing.T, api *fakeAPI) cvapi.Session {
	t.Helper()
	api.routes["GET WhoAmI"] = map[string]any{"user": map[string]any{"userName": "admin"}}
	c, host := newConnector(t, api)
	s, err := c.Connect(context.Background(), cvapi.Credentials{Hostname: host, AuthToken: "QSDK tok"})
	require.NoError(t, err)
	return s
}

func TestConnect_PasswordLogin(t *testing.T) {
	api := newFakeAPI()
	api.routes["POST Login"] = map[string]any{"token": "QSDK abc", "userName": "admin"}
	c, host := newConnector(t, api)

	s, err := c.Connect(context.Background(), cvapi.Credentials{Hostname: host, Username: "admin", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "QSDK abc", s.AuthToken())
	require.Equal(t, host, s.WebconsoleHostname())

	login := api.last("POST", "Login")
	require.Equal(t, "admin", login.Body["username"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("secret")), login.Body["password"])
}

func TestConnect_PasswordRejected(t *testing.T) {
	api := newFakeAPI()
	api.routes["POST Login"] = map[string]any{"errList": []map[string]any{{"errorCode": 5, "errLogMessage": "Login failed"}}}
	c, host := newConnector(t, api)

	_, err := c.Connect(context.Background(), cvapi.Credentials{Hostname: host, Username: "admin", Password: "bad"})
	var authErr *cvapi.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Contains(t, err.Error(), "Login failed")
}

func TestConnect_TokenUsesWhoAmI(t *testing.T) {
	api := newFakeAPI()
	s := loggedIn(t, api)
	require.Equal(t, "QSDK tok", s.AuthToken())
	require.Equal(t, "QSDK tok", api.last("GET", "WhoAmI").Token)
	require.Empty(t, api.last("POST", "Login").Method, "token login must not post credentials")
}

func TestConnect_ExpiredToken(t *testing.T) {
	api := newFakeAPI()
	api.status["GET WhoAmI"] = http.StatusUnauthorized
	c, host := newConnector(t, api)
	_, err := c.Connect(context.Background(), cvapi.Credentials{Hostname: host, AuthToken: "stale"})
	var authErr *cvapi.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestConnect_MissingFields(t *testing.T) {
	c := cvapi.NewRESTConnector(nil, time.Second, false)
	_, err := c.Connect(context.Background(), cvapi.Credentials{})
	var authErr *cvapi.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	_, err = c.Connect(context.Background(), cvapi.Credentials{Hostname: "cs.example.com", Username: "admin"})
	require.ErrorAs(t, err, &authErr)
}

func TestClients_GetAndProperties(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Client"] = map[string]any{"clientProperties": []any{
		map[string]any{"client": map[string]any{"clientEntity": map[string]any{"clientId": 2, "clientName": "C1", "hostName": "c1.example.com"}}},
	}}
	api.routes["GET Client/2"] = map[string]any{"clientProperties": []any{
		map[string]any{"client": map[string]any{"clientEntity": map[string]any{"clientId": 2, "clientName": "C1"}, "osInfo": map[string]any{"OsDisplayInfo": map[string]any{"OSName": "Linux"}}}},
	}}
	s := loggedIn(t, api)
	ctx := context.Background()

	c, err := s.Clients().Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "C1", c.Name())
	require.Equal(t, "2", c.ID())
	require.Equal(t, "c1.example.com", c.Hostname())

	inv, ok := c.(cvapi.Invoker)
	require.True(t, ok)
	require.True(t, inv.HasOperation("os_info"))
	v, err := inv.Invoke(ctx, "client_name", nil)
	require.NoError(t, err)
	require.Equal(t, "C1", v)

	_, err = s.Clients().Get(ctx, "missing")
	var nf *cvapi.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "client not found: missing", nf.Error())
}

func TestClient_DisableBackupPostsActivityControl(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Client"] = map[string]any{"clientProperties": []any{
		map[string]any{"client": map[string]any{"clientEntity": map[string]any{"clientId": "7", "clientName": "C1"}}},
	}}
	api.routes["GET Client/7"] = map[string]any{"clientProperties": []any{map[string]any{}}}
	api.routes["POST Client/7"] = map[string]any{"response": []any{map[string]any{"errorCode": 0}}}
	s := loggedIn(t, api)
	ctx := context.Background()

	c, err := s.Clients().Get(ctx, "C1")
	require.NoError(t, err)
	require.NoError(t, c.DisableBackup(ctx))

	body := api.last("POST", "Client/7").Body
	props := body["clientProperties"].(map[string]any)["clientProps"].(map[string]any)
	opts := props["clientActivityControl"].(map[string]any)["activityControlOptions"].([]any)
	require.Equal(t, false, opts[0].(map[string]any)["enableActivityType"])
}

func TestRemoteErrorEnvelope(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Client"] = map[string]any{"errorCode": 2, "errorMessage": "Access denied"}
	s := loggedIn(t, api)

	_, err := s.Clients().All(context.Background())
	var remote *cvapi.RemoteOperationError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, 2, remote.Code)
	require.Contains(t, err.Error(), "Access denied")
}

func TestRemoteHTTPStatus(t *testing.T) {
	api := newFakeAPI()
	api.status["GET StoragePool"] = http.StatusInternalServerError
	s := loggedIn(t, api)

	_, err := s.StoragePools().All(context.Background())
	var remote *cvapi.RemoteOperationError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusInternalServerError, remote.StatusCode)
}

func hierarchyAPI() *fakeAPI {
	api := newFakeAPI()
	api.routes["GET Client"] = map[string]any{"clientProperties": []any{
		map[string]any{"client": map[string]any{"clientEntity": map[string]any{"clientId": 2, "clientName": "C1"}}},
	}}
	api.routes["GET Client/2"] = map[string]any{"clientProperties": []any{map[string]any{}}}
	api.routes["GET Agent"] = map[string]any{"agentProperties": []any{
		map[string]any{"idaEntity": map[string]any{"appName": "File System", "applicationId": 33}},
	}}
	api.routes["GET Backupset"] = map[string]any{"backupsetProperties": []any{
		map[string]any{
			"backupSetEntity":           map[string]any{"backupsetName": "defaultBackupSet", "backupsetId": 10, "applicationId": 33, "instanceId": 1},
			"commonBackupSetProperties": map[string]any{"isDefaultBackupSet": true},
		},
		map[string]any{
			"backupSetEntity":           map[string]any{"backupsetName": "other", "backupsetId": 11, "applicationId": 33, "instanceId": 1},
			"commonBackupSetProperties": map[string]any{"isDefaultBackupSet": false},
		},
	}}
	api.routes["GET Subclient"] = map[string]any{"subClientProperties": []any{
		map[string]any{"subClientEntity": map[string]any{"subclientName": "default", "subclientId": 50, "backupsetId": 10, "clientName": "C1", "backupsetName": "defaultBackupSet"}},
		map[string]any{"subClientEntity": map[string]any{"subclientName": "default", "subclientId": 51, "backupsetId": 11}},
	}}
	return api
}

func resolveSubclient(t *testing.T, s cvapi.Session, backupset string) (cvapi.Backupsets, cvapi.Subclient) {
	t.Helper()
	ctx := context.Background()
	c, err := s.Clients().Get(ctx, "C1")
	require.NoError(t, err)
	a, err := c.Agents().Get(ctx, "file system")
	require.NoError(t, err)
	require.Equal(t, "33", a.ID())
	bss := a.Backupsets()
	bs, err := bss.Get(ctx, backupset)
	require.NoError(t, err)
	sc, err := bs.Subclients().Get(ctx, "default")
	require.NoError(t, err)
	return bss, sc
}

func TestHierarchy_SubclientScopedToBackupset(t *testing.T) {
	api := hierarchyAPI()
	s := loggedIn(t, api)

	bss, sc := resolveSubclient(t, s, "defaultBackupSet")
	require.Equal(t, "50", sc.ID())
	def, err := bss.DefaultBackupset(context.Background())
	require.NoError(t, err)
	require.Equal(t, "defaultBackupSet", def)

	_, sc = resolveSubclient(t, s, "other")
	require.Equal(t, "51", sc.ID())
}

func TestSubclient_BackupReturnsJob(t *testing.T) {
	api := hierarchyAPI()
	api.routes["POST Subclient/50/action/backup"] = map[string]any{"jobIds": []string{"12345"}}
	s := loggedIn(t, api)
	_, sc := resolveSubclient(t, s, "defaultBackupSet")

	job, err := sc.Backup(context.Background(), cvapi.BackupOptions{Level: "Full"})
	require.NoError(t, err)
	require.Equal(t, "12345", job.JobID())
	require.Equal(t, "backupLevel=Full", api.last("POST", "Subclient/50/action/backup").Query)
}

func TestSubclient_RestoreOutOfPlaceBuildsTask(t *testing.T) {
	api := hierarchyAPI()
	api.routes["POST CreateTask"] = map[string]any{"taskId": 9, "jobIds": []string{"777"}}
	s := loggedIn(t, api)
	_, sc := resolveSubclient(t, s, "defaultBackupSet")

	job, err := sc.RestoreOutOfPlace(context.Background(), cvapi.RestoreOptions{
		Paths: []string{"/etc/hosts"}, Client: "C2", DestinationPath: "/restore", Overwrite: true, RestoreDataAndACL: true,
	})
	require.NoError(t, err)
	require.Equal(t, "777", job.JobID())

	task := api.last("POST", "CreateTask").Body["taskInfo"].(map[string]any)
	sub := task["subTasks"].([]any)[0].(map[string]any)
	restore := sub["options"].(map[string]any)["restoreOptions"].(map[string]any)
	dest := restore["destination"].(map[string]any)
	require.Equal(t, false, dest["inPlace"])
	require.Equal(t, "C2", dest["destClient"].(map[string]any)["clientName"])
	require.Equal(t, []any{"/restore"}, dest["destPath"])
	require.Equal(t, []any{"/etc/hosts"}, restore["fileOption"].(map[string]any)["sourceItem"])
}

func TestJob_SummaryAndWait(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Job/12345"] = map[string]any{"totalRecordsWithoutPaging": 1, "jobs": []any{
		map[string]any{"jobSummary": map[string]any{
			"jobId": 12345, "status": "Completed", "jobType": "Backup", "percentComplete": 100,
			"subclient": map[string]any{"clientName": "C1", "subclientName": "default"},
		}},
	}}
	s := loggedIn(t, api)
	ctx := context.Background()

	job, err := s.JobController().Get(ctx, "12345")
	require.NoError(t, err)
	sum, err := job.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, "Completed", sum.Status)
	require.Equal(t, 100, sum.PercentComplete)
	require.Equal(t, "C1", sum.ClientName)

	ok, err := job.WaitForCompletion(ctx, time.Minute, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestJob_ResumeWaitAcceptsQueued(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Job/77"] = map[string]any{"totalRecordsWithoutPaging": 1, "jobs": []any{
		map[string]any{"jobSummary": map[string]any{"jobId": 77, "status": "Queued"}},
	}}
	api.routes["POST Job/77/action/resume"] = map[string]any{}
	s := loggedIn(t, api)
	ctx := context.Background()

	job, err := s.JobController().Get(ctx, "77")
	require.NoError(t, err)
	require.NoError(t, job.Resume(ctx, true))
	require.Equal(t, "POST", api.last("POST", "Job/77/action/resume").Method)
}

func TestJob_UnknownID(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Job/999"] = map[string]any{"totalRecordsWithoutPaging": 0}
	s := loggedIn(t, api)

	_, err := s.JobController().Get(context.Background(), "999")
	var nf *cvapi.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = s.JobController().Get(context.Background(), "abc")
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "job not found: abc", err.Error())
}

func TestJob_ListActive(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET Job"] = map[string]any{"jobs": []any{
		map[string]any{"jobSummary": map[string]any{"jobId": "1", "status": "Running"}},
	}}
	s := loggedIn(t, api)

	jobs, err := s.JobController().List(context.Background(), cvapi.JobFilter{ClientName: "C1"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "1", jobs[0].JobID)
	require.Contains(t, api.last("GET", "Job").Query, "jobCategory=Active")
	require.Contains(t, api.last("GET", "Job").Query, "clientName=C1")
}

func TestMediaAgentsAndStorage(t *testing.T) {
	api := newFakeAPI()
	api.routes["GET V2/MediaAgents"] = map[string]any{"mediaAgentList": []any{
		map[string]any{"mediaAgent": map[string]any{"mediaAgentName": "ma1", "mediaAgentId": 4}, "status": 1},
		map[string]any{"mediaAgent": map[string]any{"mediaAgentName": "ma2", "mediaAgentId": 5}, "status": 0},
	}}
	api.routes["GET StoragePool"] = map[string]any{"storagePoolList": []any{
		map[string]any{"storagePoolEntity": map[string]any{"storagePoolName": "pool1", "storagePoolId": 8}},
	}}
	api.routes["GET StoragePool/8"] = map[string]any{"storagePoolDetails": map[string]any{"totalCapacity": 1024}}
	api.routes["GET Library"] = map[string]any{"response": []any{
		map[string]any{"entityInfo": map[string]any{"name": "lib1", "id": 3}},
	}}
	api.routes["GET Library/3"] = map[string]any{"libraryInfo": map[string]any{"library": map[string]any{"libraryName": "lib1"}}}
	s := loggedIn(t, api)
	ctx := context.Background()

	ma, err := s.MediaAgents().Get(ctx, "ma1")
	require.NoError(t, err)
	require.True(t, ma.IsOnline())
	ma, err = s.MediaAgents().Get(ctx, "ma2")
	require.NoError(t, err)
	require.False(t, ma.IsOnline())

	pool, err := s.StoragePools().Get(ctx, "POOL1")
	require.NoError(t, err)
	require.Equal(t, float64(1024), pool.Properties()["totalCapacity"])

	lib, err := s.DiskLibraries().Get(ctx, "lib1")
	require.NoError(t, err)
	require.Equal(t, "3", lib.ID())
}

func TestErrorsAreDistinct(t *testing.T) {
	var nf error = &cvapi.NotFoundError{Resource: "client", Name: "x"}
	var remote *cvapi.RemoteOperationError
	require.False(t, errors.As(nf, &remote))
}
