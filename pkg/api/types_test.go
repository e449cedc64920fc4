package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRequest_Decode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantCount  TargetCount
		wantLabels []string
	}{
		{
			name:      "integer count and string filter",
			body:      `{"selector": {"services": {"name": "web"}}, "targets": 1, "action": ["pumba", "kill"]}`,
			wantCount: "1",
		},
		{
			name:      "string count",
			body:      `{"selector": {"services": {"id": "abc"}}, "targets": "1", "action": ["pumba"]}`,
			wantCount: "1",
		},
		{
			name:       "list filter",
			body:       `{"selector": {"services": {"label": ["a=1", "b=2"]}}, "targets": 1, "action": ["pumba"]}`,
			wantCount:  "1",
			wantLabels: []string{"a=1", "b=2"},
		},
		{
			name:    "boolean count",
			body:    `{"selector": {"services": {"name": "web"}}, "targets": true, "action": ["pumba"]}`,
			wantErr: true,
		},
		{
			name:    "null filter value",
			body:    `{"selector": {"services": {"name": null}}, "targets": 1, "action": ["pumba"]}`,
			wantErr: true,
		},
		{
			name:    "numeric filter value",
			body:    `{"selector": {"services": {"name": 3}}, "targets": 1, "action": ["pumba"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SubmitRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, req.Targets)
			if tt.wantLabels != nil {
				assert.Equal(t, tt.wantLabels, req.Selector.Services["label"])
			}
			assert.NoError(t, req.Validate())
		})
	}
}

func TestSubmitRequest_Validate(t *testing.T) {
	valid := SubmitRequest{
		Selector: Selector{Services: Filter{"name": {"web"}}},
		Targets:  "1",
		Action:   ActionSpec{"pumba", "kill"},
	}
	require.NoError(t, valid.Validate())

	noServices := valid
	noServices.Selector = Selector{}
	assert.Error(t, noServices.Validate())

	emptyValue := valid
	emptyValue.Selector = Selector{Services: Filter{"name": {}}}
	assert.Error(t, emptyValue.Validate())

	blankValues := []Selector{
		{Services: Filter{"name": {""}}},
		{Services: Filter{"name": {"   "}}},
		{Services: Filter{"label": {"a=1", ""}}},
		{Services: Filter{"name": {"web"}}, Tasks: Filter{"node": {""}}},
	}
	for _, sel := range blankValues {
		blank := valid
		blank.Selector = sel
		assert.Error(t, blank.Validate(), "selector %s", sel)
	}

	noTargets := valid
	noTargets.Targets = ""
	assert.Error(t, noTargets.Validate())

	noAction := valid
	noAction.Action = nil
	assert.Error(t, noAction.Validate())
}

func TestTargetCount_Int(t *testing.T) {
	tests := []struct {
		count TargetCount
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{"2", 2, true},
		{"0", 0, true},
		{" 2 ", 0, false},
		{"01", 0, false},
		{"+1", 0, false},
		{"-0", 0, false},
		{"1e0", 0, false},
		{"foo", 0, false},
		{"1.5", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		n, ok := tt.count.Int()
		assert.Equal(t, tt.ok, ok, "count %q", tt.count)
		assert.Equal(t, tt.want, n, "count %q", tt.count)
	}
}

func TestExecutionResult_JSON(t *testing.T) {
	ok, err := json.Marshal(Success("c1", "done\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "success", "target": "c1", "output": "done\n"}`, string(ok))

	failed, err := json.Marshal(Failure("c2", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "failure", "target": "c2", "message": ""}`, string(failed))

	var decoded ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(`{"status": "failure", "target": "c3", "message": "boom"}`), &decoded))
	assert.Equal(t, Failure("c3", "boom"), decoded)
	assert.False(t, decoded.Succeeded())

	assert.Error(t, json.Unmarshal([]byte(`{"status": "maybe"}`), &decoded))
	_, err = json.Marshal(ExecutionResult{})
	assert.Error(t, err)
}

func TestFilter_String(t *testing.T) {
	f := Filter{"name": {"web"}, "label": {"a=1", "b=2"}}
	assert.Equal(t, "{label=a=1,b=2 name=web}", f.String())
}
