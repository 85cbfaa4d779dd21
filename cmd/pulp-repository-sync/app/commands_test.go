package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/thoth-station/pulp-repository-sync-job/internal/store"
)

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd(nil)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version", "--format", "json"})

		require.NoError(t, cmd.Execute())

		var info map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &info))
		assert.NotEmpty(t, info["version"])
		assert.Contains(t, info["component_version"], "+pgx.")
		assert.NotEmpty(t, info["go_version"])
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd(nil)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		require.NoError(t, cmd.Execute())
		assert.Empty(t, out.String(), "text output goes to the logger")
	})

	t.Run("unsupported format", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd(nil)
		cmd.SetArgs([]string{"version", "--format", "xml"})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported format "xml"`)
	})
}

func TestRootCmd_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		errorContains string
	}{
		{
			name:          "missing pulp options",
			args:          []string{},
			errorContains: "--pulp-instance (THOTH_PULP_REPOSITORIES_SYNC_PULP_INSTANCES)",
		},
		{
			name: "disable and enable index together",
			args: []string{
				"--pulp-instance", "pulp.example.com", "--pulp-username", "admin", "--pulp-password", "secret",
				"--disable-index", "--enable-index",
			},
			errorContains: "none of the others can be",
		},
		{
			name: "instance with scheme",
			args: []string{
				"--pulp-instance", "https://pulp.example.com", "--pulp-username", "admin", "--pulp-password", "secret",
			},
			errorContains: "must be a host without scheme or path",
		},
		{
			name:          "positional arguments",
			args:          []string{"extra"},
			errorContains: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			r, _, _ := newTestRunner(ctrl)

			cmd := newRootCmd(r)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestRootCmd_DisableIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flag    []string
		enabled bool
	}{
		{name: "enabled by default", enabled: true},
		{name: "enable index flag", flag: []string{"--enable-index"}, enabled: true},
		{name: "disable index flag", flag: []string{"--disable-index"}, enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			r, mockStore, mockLister := newTestRunner(ctrl)

			mockStore.EXPECT().GetPythonPackageIndexAll(gomock.Any()).Return(nil, nil)
			mockLister.EXPECT().SimpleIndexes(gomock.Any()).Return(urls(idxA))
			mockStore.EXPECT().RegisterPythonPackageIndex(gomock.Any(), store.RegisterParams{
				URL:       idxA,
				VerifySSL: true,
				Enabled:   tt.enabled,
			}).Return(true, nil)
			mockStore.EXPECT().Close()

			cmd := newRootCmd(r)
			cmd.SetArgs(append([]string{
				"--pulp-instance", "pulp.example.com",
				"--pulp-username", "admin",
				"--pulp-password", "secret",
			}, tt.flag...))

			require.NoError(t, cmd.ExecuteContext(context.Background()))
		})
	}
}
