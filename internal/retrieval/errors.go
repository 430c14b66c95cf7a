package retrieval

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrEmptyQuery          = errors.New("empty query")
)

type Stage string

const (
	StageExpand         Stage = "expand"
	StageEmbed          Stage = "embed"
	StageConnect        Stage = "connect"
	StageSearchWorkshop Stage = "search_workshops"
	StageSearchPaper    Stage = "search_papers"
)

// StageError records a failure that was absorbed while serving a request.
// Variant is -1 for stages that are not tied to a single query variant.
type StageError struct {
	Stage   Stage
	Variant int
	Err     error
}

func (e StageError) Error() string {
	if e.Variant < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", e.Stage, e.Variant, e.Err)
}

func (e StageError) Unwrap() error {
	return e.Err
}

// Report describes how a search request went. It never changes the returned
// results, it only explains them.
type Report struct {
	Variants int
	Results  int
	Aborted  error
	Failures []StageError
}

func (r *Report) fail(stage Stage, variant int, kind error, err error) {
	r.Failures = append(r.Failures, StageError{Stage: stage, Variant: variant, Err: fmt.Errorf("%w: %v", kind, err)})
}

// Degraded reports whether any stage failed.
func (r Report) Degraded() bool {
	return r.Aborted != nil || len(r.Failures) > 0
}
