package cvapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"commvault-ops/src/endpoint"
)

// RESTConnector connects to a CommCell through the WebConsole REST API.
type RESTConnector struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Clock      clock.Clock
	Endpoint   endpoint.Defaults
	// RateLimit bounds requests per second. Zero means 5.
	RateLimit rate.Limit
	// PollInterval is how often jobs are re-read while waiting.
	PollInterval time.Duration
}

// NewRESTConnector returns a connector with an HTTP client using the given
// timeout.
func NewRESTConnector(logger *slog.Logger, timeout time.Duration, insecure bool) *RESTConnector {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &RESTConnector{
		HTTPClient: &http.Client{Timeout: timeout, Transport: transport},
		Logger:     logger,
		Clock:      clock.New(),
	}
}

// Connect logs in with a token or with username and password.
func (c *RESTConnector) Connect(ctx context.Context, creds Credentials) (Session, error) {
	if strings.TrimSpace(creds.Hostname) == "" {
		return nil, &AuthenticationError{Reason: "webconsole hostname is required"}
	}
	ep, err := endpoint.Parse(creds.Hostname, c.Endpoint)
	if err != nil {
		return nil, &AuthenticationError{Hostname: creds.Hostname, Err: err}
	}
	client, err := c.newClient(ep)
	if err != nil {
		return nil, err
	}

	if creds.AuthToken != "" {
		client.token = creds.AuthToken
		var who struct {
			User struct {
				UserName string `json:"userName"`
			} `json:"user"`
		}
		if err := client.do(ctx, http.MethodGet, "WhoAmI", nil, nil, &who); err != nil {
			return nil, asAuthError(creds.Hostname, err)
		}
		client.logger.Debug("session restored from token", "user", who.User.UserName)
		return &restSession{c: client, hostname: creds.Hostname}, nil
	}

	if creds.Username == "" || creds.Password == "" {
		return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: "either an authtoken or username and password are required"}
	}
	req := map[string]string{
		"username": creds.Username,
		"password": base64.StdEncoding.EncodeToString([]byte(creds.Password)),
	}
	var resp struct {
		Token   string `json:"token"`
		ErrList []struct {
			ErrorCode     int    `json:"errorCode"`
			ErrLogMessage string `json:"errLogMessage"`
		} `json:"errList"`
	}
	if err := client.do(ctx, http.MethodPost, "Login", nil, req, &resp); err != nil {
		return nil, asAuthError(creds.Hostname, err)
	}
	if resp.Token == "" {
		reason := "no token issued"
		if len(resp.ErrList) > 0 {
			reason = resp.ErrList[0].ErrLogMessage
		}
		return nil, &AuthenticationError{Hostname: creds.Hostname, Reason: reason}
	}
	client.token = resp.Token
	client.logger.Debug("logged in", "user", creds.Username)
	return &restSession{c: client, hostname: creds.Hostname}, nil
}

func asAuthError(hostname string, err error) error {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		if authErr.Hostname == "" {
			authErr.Hostname = hostname
		}
		return authErr
	}
	return &AuthenticationError{Hostname: hostname, Err: err}
}

func (c *RESTConnector) newClient(ep endpoint.Endpoint) (*restClient, error) {
	u, err := url.Parse(ep.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("url parse: %s: %w", ep.BaseURL(), err)
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}
	limit := c.RateLimit
	if limit == 0 {
		limit = 5
	}
	return &restClient{
		httpClient:   httpClient,
		urlBase:      *u,
		logger:       logger.With("endpoint", ep.Host),
		clock:        clk,
		rateLimiter:  rate.NewLimiter(limit, 1),
		pollInterval: c.PollInterval,
	}, nil
}

// restClient issues authenticated JSON requests against one CommCell.
type restClient struct {
	httpClient   *http.Client
	urlBase      url.URL
	token        string
	logger       *slog.Logger
	clock        clock.Clock
	rateLimiter  *rate.Limiter
	pollInterval time.Duration
}

func (c *restClient) url(endpoint string, query url.Values) string {
	u := c.urlBase
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request. payload is JSON-encoded when non-nil; resp receives
// the decoded body when non-nil. Non-2xx statuses and error envelopes in the
// body become *RemoteOperationError, 401 becomes *AuthenticationError.
func (c *restClient) do(ctx context.Context, method, endpoint string, query url.Values, payload any, resp any) error {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		bodyReader = bytes.NewReader(body)
	}

	u := c.url(endpoint, query)
	httpReq, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("url: %s: %w", u, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authtoken", c.token)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	start := c.clock.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, endpoint, err)
	}
	c.logger.Debug("api request", "method", method, "path", endpoint, "status", httpResp.StatusCode, "duration", c.clock.Since(start))

	op := method + " " + endpoint
	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Reason: strings.TrimSpace(errorText(body, httpResp.Status))}
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return &RemoteOperationError{Operation: op, StatusCode: httpResp.StatusCode, Message: errorText(body, httpResp.Status)}
	}
	if len(body) == 0 {
		return nil
	}
	if code, msg := errorEnvelope(body); code != 0 {
		return &RemoteOperationError{Operation: op, Code: code, Message: msg}
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("parse body from %s: %w", op, err)
	}
	return nil
}

// errorEnvelope finds the first non-zero errorCode in the shapes the API
// uses for failures reported with a 200 status.
func errorEnvelope(body []byte) (int, string) {
	var env struct {
		ErrorCode    flexInt         `json:"errorCode"`
		ErrorMessage string          `json:"errorMessage"`
		ErrorString  string          `json:"errorString"`
		Response     json.RawMessage `json:"response"`
		ErrList      []struct {
			ErrorCode     flexInt `json:"errorCode"`
			ErrLogMessage string  `json:"errLogMessage"`
		} `json:"errList"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, ""
	}
	if env.ErrorCode != 0 {
		return int(env.ErrorCode), firstNonEmpty(env.ErrorMessage, env.ErrorString)
	}
	for _, e := range env.ErrList {
		if e.ErrorCode != 0 {
			return int(e.ErrorCode), e.ErrLogMessage
		}
	}
	type entry struct {
		ErrorCode   flexInt `json:"errorCode"`
		ErrorString string  `json:"errorString"`
	}
	if len(env.Response) > 0 {
		var list []entry
		if json.Unmarshal(env.Response, &list) != nil {
			var one entry
			if json.Unmarshal(env.Response, &one) == nil {
				list = []entry{one}
			}
		}
		for _, e := range list {
			if e.ErrorCode != 0 {
				return int(e.ErrorCode), e.ErrorString
			}
		}
	}
	return 0, ""
}

func errorText(body []byte, status string) string {
	if code, msg := errorEnvelope(body); code != 0 && msg != "" {
		return msg
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return status
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexID(s)
	return nil
}

// flexInt accepts integers sent either as JSON numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// getDocument fetches endpoint and returns the object under key (or the
// first element when it is a list).
func (c *restClient) getDocument(ctx context.Context, endpoint, key string) (Document, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &raw); err != nil {
		return nil, err
	}
	switch v := raw[key].(type) {
	case map[string]any:
		return Document(v), nil
	case []any:
		if len(v) > 0 {
			if m, ok := v[0].(map[string]any); ok {
				return Document(m), nil
			}
		}
	}
	return Document(raw), nil
}

func (c *restClient) jobIDs(ctx context.Context, method, endpoint string, query url.Values, payload any) ([]string, error) {
	var resp struct {
		JobIDs []flexID `json:"jobIds"`
	}
	if err := c.do(ctx, method, endpoint, query, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.JobIDs) == 0 {
		return nil, &RemoteOperationError{Operation: method + " " + endpoint, Message: "no job was started"}
	}
	out := make([]string, 0, len(resp.JobIDs))
	for _, id := range resp.JobIDs {
		out = append(out, string(id))
	}
	return out, nil
}

// findByName does the case-insensitive name match every collection uses.
func findByName(refs []EntityRef, resource, name string) (EntityRef, error) {
	for _, r := range refs {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return EntityRef{}, &NotFoundError{Resource: resource, Name: name}
}

func activityControl(enable bool) map[string]any {
	return map[string]any{
		"activityControlOptions": []map[string]any{{
			"activityType":       1,
			"enableAfterADelay":  false,
			"enableActivityType": enable,
		}},
	}
}

func describe(kind, label, name string) string {
	return fmt.Sprintf("%s class instance for %s: %q", kind, label, name)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
