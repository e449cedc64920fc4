package coordinator

import "errors"

// Submission errors. Anything returned by Submit wraps one of these; per-target
// failures never surface as an error.
var (
	// ErrInvalidSelector means the submission was malformed
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrInvalidTargetCount means the requested count is unsupported or
	// larger than the candidate set
	ErrInvalidTargetCount = errors.New("invalid target count")

	// ErrNoTargets means the selector matched no running instance
	ErrNoTargets = errors.New("no targets found")

	// ErrHelperDiscovery means the helper service could not be located
	// unambiguously; this is a deployment defect
	ErrHelperDiscovery = errors.New("helper discovery failed")

	// ErrOrchestration means the orchestration API could not be queried
	ErrOrchestration = errors.New("orchestration query failed")
)

// IsClientError reports whether err should be answered with a client error
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSelector) ||
		errors.Is(err, ErrInvalidTargetCount) ||
		errors.Is(err, ErrNoTargets)
}
