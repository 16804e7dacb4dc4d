// Package session turns login credentials into a live CommCell session and
// back into the token data a later invocation can reuse.
package session

import (
	"context"
	"fmt"
	"strings"

	"commvault-ops/src/cvapi"
)

// Credential keys accepted in the login entity map and in commcell data.
const (
	KeyHostname  = "webconsole_hostname"
	KeyUsername  = "commcell_username"
	KeyPassword  = "commcell_password"
	KeyAuthToken = "authtoken"
)

// Info is the serializable part of a session. It is emitted by login and
// passed back as commcell data on every later invocation.
type Info struct {
	AuthToken          string `json:"authtoken" yaml:"authtoken"`
	WebconsoleHostname string `json:"webconsole_hostname" yaml:"webconsole_hostname"`
}

// Login authenticates with a token when one is given, otherwise with
// username and password. The hostname is returned exactly as supplied.
func Login(ctx context.Context, connector cvapi.Connector, creds cvapi.Credentials) (Info, cvapi.Session, error) {
	if strings.TrimSpace(creds.Hostname) == "" {
		return Info{}, nil, &cvapi.AuthenticationError{Reason: "webconsole_hostname is required"}
	}
	if creds.AuthToken == "" && (creds.Username == "" || creds.Password == "") {
		return Info{}, nil, &cvapi.AuthenticationError{Hostname: creds.Hostname, Reason: "either authtoken or commcell_username and commcell_password are required"}
	}
	if creds.AuthToken != "" {
		creds.Username, creds.Password = "", ""
	}
	s, err := connector.Connect(ctx, creds)
	if err != nil {
		return Info{}, nil, err
	}
	return Info{AuthToken: s.AuthToken(), WebconsoleHostname: creds.Hostname}, s, nil
}

// Restore rebuilds a session from Info without a password round-trip.
func Restore(ctx context.Context, connector cvapi.Connector, info Info) (cvapi.Session, error) {
	if info.AuthToken == "" {
		return nil, &cvapi.AuthenticationError{Hostname: info.WebconsoleHostname, Reason: "authtoken is required"}
	}
	_, s, err := Login(ctx, connector, cvapi.Credentials{Hostname: info.WebconsoleHostname, AuthToken: info.AuthToken})
	return s, err
}

// CredentialsFromMap reads login credentials from an entity or commcell map.
// Non-string values are an error.
func CredentialsFromMap(m map[string]any) (cvapi.Credentials, error) {
	var creds cvapi.Credentials
	fields := []struct {
		key string
		dst *string
	}{
		{KeyHostname, &creds.Hostname},
		{KeyUsername, &creds.Username},
		{KeyPassword, &creds.Password},
		{KeyAuthToken, &creds.AuthToken},
	}
	for _, f := range fields {
		v, ok := m[f.key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return cvapi.Credentials{}, fmt.Errorf("%s must be a string, got %T", f.key, v)
		}
		*f.dst = s
	}
	return creds, nil
}

// FillFrom returns creds with empty fields taken from fallback.
func FillFrom(creds, fallback cvapi.Credentials) cvapi.Credentials {
	if creds.Hostname == "" {
		creds.Hostname = fallback.Hostname
	}
	if creds.AuthToken == "" && creds.Username == "" {
		creds.AuthToken = fallback.AuthToken
	}
	if creds.AuthToken == "" {
		if creds.Username == "" {
			creds.Username = fallback.Username
		}
		if creds.Password == "" {
			creds.Password = fallback.Password
		}
	}
	return creds
}
