package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url      string
		expected ConnectionInfo
	}{
		{"redis://localhost", ConnectionInfo{Network: "tcp", Address: "localhost:6379"}},
		{"redis://cache:6380/2", ConnectionInfo{Network: "tcp", Address: "cache:6380", DB: 2}},
		{"redis://:secret@cache", ConnectionInfo{Network: "tcp", Address: "cache:6379", Password: "secret"}},
		{"redis://secret@cache", ConnectionInfo{Network: "tcp", Address: "cache:6379", Password: "secret"}},
		{"redis://app:pw@cache/1", ConnectionInfo{Network: "tcp", Address: "cache:6379", Username: "app", Password: "pw", DB: 1}},
		{"redis://[::1]:7000?db=3", ConnectionInfo{Network: "tcp", Address: "[::1]:7000", DB: 3}},
		{"unix:///var/run/redis.sock", ConnectionInfo{Network: "unix", Address: "/var/run/redis.sock"}},
		{"redis+unix:///tmp/r.sock?db=5", ConnectionInfo{Network: "unix", Address: "/tmp/r.sock", DB: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			info, err := ParseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, info)
		})
	}
}

func TestParseURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"http://localhost",
		"redis://",
		"redis://localhost/abc",
		"redis://localhost/-1",
		"redis://localhost?db=x",
		"unix://",
		"://nope",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseURL(raw)
			assert.Error(t, err)
		})
	}
}

func TestTCP(t *testing.T) {
	assert.Equal(t, "localhost:6379", TCP("localhost").Address)
	assert.Equal(t, "10.0.0.1:7000", TCP("10.0.0.1:7000").Address)
	assert.Equal(t, "tcp", TCP("x").Network)
}

func TestConnectionInfo_String(t *testing.T) {
	info := ConnectionInfo{Network: "tcp", Address: "cache:6379", Password: "secret", DB: 1}
	assert.Equal(t, "redis://cache:6379/1", info.String())
	assert.NotContains(t, info.String(), "secret")

	assert.Equal(t, "unix:///tmp/r.sock?db=0", ConnectionInfo{Network: "unix", Address: "/tmp/r.sock"}.String())
}
