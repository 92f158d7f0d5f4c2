package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"ftp", ProtocolFTP, false},
		{"FTP", ProtocolFTP, false},
		{"sftp", ProtocolSFTP, false},
		{" ssh ", ProtocolSFTP, false},
		{"local", ProtocolLocal, false},
		{"scp", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProtocol(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointValidate(t *testing.T) {
	valid := Endpoint{Protocol: ProtocolSFTP, Host: "example.com", Username: "deploy", Password: "secret"}

	tests := []struct {
		name    string
		mutate  func(*Endpoint)
		wantErr string
	}{
		{"valid", func(*Endpoint) {}, ""},
		{"missing host", func(e *Endpoint) { e.Host = "" }, "host"},
		{"blank user", func(e *Endpoint) { e.Username = "  " }, "username"},
		{"missing password", func(e *Endpoint) { e.Password = "" }, "password"},
		{"negative port", func(e *Endpoint) { e.Port = -1 }, "invalid port"},
		{"port too large", func(e *Endpoint) { e.Port = 70000 }, "invalid port"},
		{"no protocol", func(e *Endpoint) { e.Protocol = "" }, "protocol is required"},
		{"unknown protocol", func(e *Endpoint) { e.Protocol = "scp" }, "unknown protocol"},
		{"local needs nothing", func(e *Endpoint) { *e = Endpoint{Protocol: ProtocolLocal} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEndpointAddrUsesDefaultPort(t *testing.T) {
	assert.Equal(t, "example.com:21", Endpoint{Protocol: ProtocolFTP, Host: "example.com"}.Addr())
	assert.Equal(t, "example.com:22", Endpoint{Protocol: ProtocolSFTP, Host: "example.com"}.Addr())
	assert.Equal(t, "example.com:2222", Endpoint{Protocol: ProtocolSFTP, Host: "example.com", Port: 2222}.Addr())
	assert.Equal(t, "[::1]:22", Endpoint{Protocol: ProtocolSFTP, Host: "::1"}.Addr())
}

func TestEndpointStringHidesPassword(t *testing.T) {
	e := Endpoint{Protocol: ProtocolFTP, Host: "h", Username: "u", Password: "hunter2"}

	assert.Equal(t, "ftp://u@h:21", e.String())
	assert.NotContains(t, e.String(), "hunter2")
}
