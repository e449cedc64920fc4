package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaosswarm/chaosswarm/pkg/api"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    api.Filter
		wantErr bool
	}{
		{
			name:   "none",
			values: nil,
			want:   nil,
		},
		{
			name:   "single",
			values: []string{"name=web"},
			want:   api.Filter{"name": {"web"}},
		},
		{
			name:   "repeated key accumulates",
			values: []string{"name=web", "name=api"},
			want:   api.Filter{"name": {"web", "api"}},
		},
		{
			name:   "label value keeps its equals sign",
			values: []string{"label=tier=frontend"},
			want:   api.Filter{"label": {"tier=frontend"}},
		},
		{
			name:    "missing equals",
			values:  []string{"web"},
			wantErr: true,
		},
		{
			name:    "empty key",
			values:  []string{"=web"},
			wantErr: true,
		},
		{
			name:    "empty value",
			values:  []string{"name="},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilters(tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestRoot(t *testing.T, sub *cobra.Command, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := &cobra.Command{Use: "chaosctl", SilenceUsage: true, SilenceErrors: true}
	AddGlobalFlags(root)
	root.AddCommand(sub)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	return root, &buf
}

func TestSubmitCommand(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		output     string
		wantErr    string
		wantOutput []string
	}{
		{
			name:       "success table",
			code:       http.StatusOK,
			body:       `{"status":"success","executions":[{"status":"success","target":"c1","output":"kill c1\n"}]}`,
			output:     "table",
			wantOutput: []string{"c1", "success", "kill c1", "Submission succeeded on 1 target(s)"},
		},
		{
			name:       "failure table",
			code:       http.StatusInternalServerError,
			body:       `{"status":"failure","message":"no helper active on node n2","executions":[{"status":"failure","target":"c2","message":"no helper active on node n2"}]}`,
			output:     "table",
			wantErr:    "submission failed: no helper active on node n2",
			wantOutput: []string{"c2", "failure"},
		},
		{
			name:       "success json",
			code:       http.StatusOK,
			body:       `{"status":"success","executions":[{"status":"success","target":"c1","output":"ok"}]}`,
			output:     "json",
			wantOutput: []string{`"status": "success"`, `"target": "c1"`},
		},
		{
			name:    "rejection",
			code:    http.StatusBadRequest,
			body:    `{"status":"failure","message":"no targets found for selector services={name=web}"}`,
			output:  "table",
			wantErr: "no targets found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got api.SubmitRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/submit", r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.code)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			root, buf := newTestRoot(t, NewSubmitCommand(),
				"submit", "--helper", srv.URL, "-o", tt.output,
				"--service-filter", "name=web", "--task-filter", "desired-state=running",
				"--", "pumba", "kill", "--signal", "SIGKILL",
			)

			err := root.Execute()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.wantOutput {
				assert.Contains(t, buf.String(), want)
			}

			assert.Equal(t, api.Filter{"name": {"web"}}, got.Selector.Services)
			assert.Equal(t, api.Filter{"desired-state": {"running"}}, got.Selector.Tasks)
			assert.Equal(t, api.TargetCount("1"), got.Targets)
			assert.Equal(t, api.ActionSpec{"pumba", "kill", "--signal", "SIGKILL"}, got.Action)
		})
	}
}

func TestSubmitCommand_RejectsLocally(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "bad filter",
			args:    []string{"submit", "--helper", srv.URL, "--service-filter", "web", "--", "pumba"},
			wantErr: "invalid --service-filter",
		},
		{
			name:    "unknown output format",
			args:    []string{"submit", "--helper", srv.URL, "-o", "xml", "--service-filter", "name=web", "--", "pumba"},
			wantErr: "unknown output format",
		},
		{
			name:    "missing action",
			args:    []string{"submit", "--helper", srv.URL, "--service-filter", "name=web"},
			wantErr: "requires at least 1 arg",
		},
		{
			name:    "missing service filter",
			args:    []string{"submit", "--helper", srv.URL, "--", "pumba"},
			wantErr: "service-filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, _ := newTestRoot(t, NewSubmitCommand(), tt.args...)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Zero(t, calls)
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	root, buf := newTestRoot(t, NewHealthCommand(), "health", "--helper", srv.URL)
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "is healthy")
}

func TestHealthCommand_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	root, _ := newTestRoot(t, NewHealthCommand(), "health", "--helper", addr, "--timeout", "1s")
	assert.Error(t, root.Execute())
}
