package infra

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathsForHome(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Paths
	}{
		{
			name: "defaults",
			want: Paths{
				Home:         "/home/u",
				DataDir:      "/home/u/.local/share/ccswitch",
				SettingsFile: "/home/u/.config/ccswitch/settings.yaml",
				LogFile:      "/home/u/.local/share/ccswitch/ccswitch.log",
			},
		},
		{
			name: "xdg data home and config override",
			env: map[string]string{
				"XDG_DATA_HOME": "/data",
				ConfigEnvVar:    "/etc/ccswitch.yaml",
			},
			want: Paths{
				Home:         "/home/u",
				DataDir:      "/data/ccswitch",
				SettingsFile: "/etc/ccswitch.yaml",
				LogFile:      filepath.Join("/data/ccswitch", "ccswitch.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathsForHome("/home/u", func(k string) string { return tt.env[k] })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetRealUserHome(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	assert.NotEmpty(t, GetRealUserHome())
}
