package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/hashicorp/go-multierror"
)

// DefaultConcurrency bounds the number of artifact pipelines in flight.
const DefaultConcurrency = 4

// Event represents a progress notification.
type Event struct {
	Phase string // scanning|identifying|resolving|downloading|replacing|installing|skipped|done|error
	ID    string // artifact name
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// Status is the outcome of one artifact.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusPlanned   Status = "planned"
)

// DuplicatePolicy decides what happens when several local artifacts resolve
// to the same remote project.
type DuplicatePolicy string

const (
	// DuplicateReject fails every artifact of the duplicated project.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateKeepNewest updates the most recently installed copy and skips the rest.
	DuplicateKeepNewest DuplicatePolicy = "keep-newest"
)

// ParseDuplicatePolicy parses a policy name. The empty string selects DuplicateReject.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicateReject, nil
	case DuplicateReject, DuplicateKeepNewest:
		return p, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown duplicate policy %q (valid: reject, keep-newest)", s)
	}
}

// UpdateOptions control UpdateDirectory.
type UpdateOptions struct {
	// KeepPrevious retains the replaced file next to the artifact as <name>.bak.
	KeepPrevious    bool
	DryRun          bool
	DuplicatePolicy DuplicatePolicy
	Concurrency     int
}

// Target names what ResolveAndInstall should install: an exact identity, or
// a free-text query resolved through search.
type Target struct {
	Identity model.Identity
	Query    string
}

func (t Target) String() string {
	if !t.Identity.IsZero() {
		return t.Identity.String()
	}
	return t.Query
}

// Outcome is the result for one artifact.
type Outcome struct {
	Name        string         `json:"name"`
	Path        string         `json:"path,omitempty"`
	Identity    model.Identity `json:"identity,omitempty"`
	Status      Status         `json:"status"`
	FromVersion string         `json:"from_version,omitempty"`
	ToVersion   string         `json:"to_version,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	// Backup is the retained previous file when KeepPrevious is set.
	Backup string `json:"backup,omitempty"`
	Err    error  `json:"-"`
}

// Error returns the failure message, or "".
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report collects every outcome of one operation.
type Report struct {
	Items []Outcome `json:"items"`
	// Optional lists optional dependencies seen during resolution. They are
	// never installed automatically.
	Optional []model.Identity `json:"optional,omitempty"`
}

func (r *Report) filter(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Items {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns the artifacts that were installed or replaced.
func (r *Report) Succeeded() []Outcome { return r.filter(StatusSucceeded) }

// Skipped returns the artifacts that were already current or set aside.
func (r *Report) Skipped() []Outcome { return r.filter(StatusSkipped) }

// Failed returns the artifacts that could not be processed.
func (r *Report) Failed() []Outcome { return r.filter(StatusFailed) }

// Planned returns what a dry run would have done.
func (r *Report) Planned() []Outcome { return r.filter(StatusPlanned) }

// Status summarizes the report as all-succeeded, partial or all-failed.
// Skipped and planned artifacts count as successes.
func (r *Report) Status() model.BatchStatus {
	return model.StatusOf(len(r.Items), len(r.Failed()))
}

// Err combines every failure, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Failed() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", o.Name, o.Err))
	}
	return result.ErrorOrNil()
}

func (r *Report) sort() {
	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Name < r.Items[j].Name })
	sort.SliceStable(r.Optional, func(i, j int) bool { return r.Optional[i].Key() < r.Optional[j].Key() })
}

// Listing describes one artifact found on disk.
type Listing struct {
	Name   string            `json:"name"`
	Path   string            `json:"path"`
	State  model.ToggleState `json:"state"`
	Record *model.Record     `json:"record,omitempty"`
	// MetadataError explains why an embedded record was ignored.
	MetadataError string `json:"metadata_error,omitempty"`
	// Conflict is set when the artifact exists both enabled and disabled.
	Conflict bool `json:"conflict,omitempty"`
}
