package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Status is the outcome reported for a single execution or a whole submission
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Filter maps an orchestration attribute (name, id, label, mode, node,
// desired-state, ...) to one or more accepted values. On the wire a value may
// be a single string or a list of strings.
type Filter map[string][]string

// UnmarshalJSON accepts {"name": "web"} as well as {"label": ["a=1", "b=2"]}
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter must be an object: %w", err)
	}
	if raw == nil {
		*f = nil
		return nil
	}

	out := make(Filter, len(raw))
	for key, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return fmt.Errorf("filter %q must be a string or a list of strings, got null", key)
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[key] = []string{single}
			continue
		}
		var many []string
		if err := json.Unmarshal(value, &many); err != nil {
			return fmt.Errorf("filter %q must be a string or a list of strings", key)
		}
		out[key] = many
	}
	*f = out
	return nil
}

// Keys returns the filter attributes in sorted order
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the filter deterministically for messages and logs
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(f[k], ",")))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Selector chooses the services, and optionally the tasks within them, that
// are eligible for an action
type Selector struct {
	Services Filter `json:"services"`
	Tasks    Filter `json:"tasks,omitempty"`
}

// Validate checks the selector shape
func (s Selector) Validate() error {
	if len(s.Services) == 0 {
		return errors.New("selector.services is required")
	}
	if err := s.Services.validate("selector.services"); err != nil {
		return err
	}
	return s.Tasks.validate("selector.tasks")
}

// validate rejects blank keys and blank values. The daemon matches some
// filters by prefix, so an empty value would select everything.
func (f Filter) validate(field string) error {
	for _, key := range f.Keys() {
		values := f[key]
		if strings.TrimSpace(key) == "" || len(values) == 0 {
			return fmt.Errorf("%s has an empty filter %q", field, key)
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s filter %q has an empty value", field, key)
			}
		}
	}
	return nil
}

func (s Selector) String() string {
	if len(s.Tasks) == 0 {
		return fmt.Sprintf("services=%s", s.Services)
	}
	return fmt.Sprintf("services=%s tasks=%s", s.Services, s.Tasks)
}

// TargetCount is the requested number of targets. Both 1 and "1" are
// accepted on the wire; the literal text is kept so that bad values can be
// reported as given.
type TargetCount string

// UnmarshalJSON keeps numbers and strings, rejects every other JSON type
func (c *TargetCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("targets is empty")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TargetCount(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*c = TargetCount(data)
		return nil
	default:
		return fmt.Errorf("targets must be a number or a string, got %s", data)
	}
}

// Int parses the count. Only canonical decimal integers are valid, so
// "01", " 1" and "+1" are rejected.
func (c TargetCount) Int() (int, bool) {
	n, err := strconv.Atoi(string(c))
	if err != nil || strconv.Itoa(n) != string(c) {
		return 0, false
	}
	return n, true
}

// ActionSpec is [actionName, args...]
type ActionSpec []string

// Name returns the action name, or "" for an empty spec
func (a ActionSpec) Name() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Args returns the arguments following the action name
func (a ActionSpec) Args() []string {
	if len(a) < 2 {
		return nil
	}
	return a[1:]
}

// Validate checks the action has a name
func (a ActionSpec) Validate() error {
	if len(a) == 0 || strings.TrimSpace(a[0]) == "" {
		return errors.New("action must start with an action name")
	}
	return nil
}

// ExecutionResult is the outcome of one action against one target. It is a
// tagged variant: a success carries Output, a failure carries Message.
type ExecutionResult struct {
	Status  Status
	Target  string
	Output  string
	Message string
}

// Success builds a successful result
func Success(target, output string) ExecutionResult {
	return ExecutionResult{Status: StatusSuccess, Target: target, Output: output}
}

// Failure builds a failed result
func Failure(target, message string) ExecutionResult {
	return ExecutionResult{Status: StatusFailure, Target: target, Message: message}
}

// Succeeded reports whether the result is a success
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

type successBody struct {
	Status Status `json:"status"`
	Target string `json:"target"`
	Output string `json:"output"`
}

type failureBody struct {
	Status  Status `json:"status"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// MarshalJSON emits only the fields of the active branch
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	switch r.Status {
	case StatusSuccess:
		return json.Marshal(successBody{Status: r.Status, Target: r.Target, Output: r.Output})
	case StatusFailure:
		return json.Marshal(failureBody{Status: r.Status, Target: r.Target, Message: r.Message})
	default:
		return nil, fmt.Errorf("invalid execution status %q", r.Status)
	}
}

// UnmarshalJSON decodes either branch and rejects unknown statuses
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var body struct {
		Status  Status `json:"status"`
		Target  string `json:"target"`
		Output  string `json:"output"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	switch body.Status {
	case StatusSuccess:
		*r = Success(body.Target, body.Output)
	case StatusFailure:
		*r = Failure(body.Target, body.Message)
	default:
		return fmt.Errorf("invalid execution status %q", body.Status)
	}
	return nil
}

// SubmitRequest is the body of POST /submit
type SubmitRequest struct {
	Selector Selector    `json:"selector"`
	Targets  TargetCount `json:"targets"`
	Action   ActionSpec  `json:"action"`
}

// Validate checks the request shape. The target count is checked against
// policy by the coordinator.
func (r SubmitRequest) Validate() error {
	if err := r.Selector.Validate(); err != nil {
		return err
	}
	if r.Targets == "" {
		return errors.New("targets is required")
	}
	return r.Action.Validate()
}

// SubmitResponse is the body returned by POST /submit
type SubmitResponse struct {
	Status     Status            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Executions []ExecutionResult `json:"executions,omitempty"`
}

// ExecuteRequest is the body of POST /execute
type ExecuteRequest struct {
	Container string     `json:"container"`
	Action    ActionSpec `json:"action"`
}

// Validate checks the request shape
func (r ExecuteRequest) Validate() error {
	if strings.TrimSpace(r.Container) == "" {
		return errors.New("container is required")
	}
	return r.Action.Validate()
}
