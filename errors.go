package symbiomisc

import "fmt"

// MalformedInputError reports a schema violation in an input table. It is
// fatal: the run cannot continue with data whose keys are not trustworthy.
type MalformedInputError struct {
	Source string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input %s: %s", e.Source, e.Reason)
}

// Malformed is a convenience constructor for MalformedInputError.
func Malformed(source, format string, args ...interface{}) error {
	return &MalformedInputError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// EmptyDatasetError is returned by analyses that need a minimum number of
// samples and did not get them. Pipelines skip the analysis and continue.
type EmptyDatasetError struct {
	Analysis string
	Have     int
	Need     int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("%s needs at least %d samples, have %d", e.Analysis, e.Need, e.Have)
}

// InsufficientSampleSizeError marks a statistical comparison that could not be
// run because one of its groups is too small.
type InsufficientSampleSizeError struct {
	Group string
	N     int
	Need  int
}

func (e *InsufficientSampleSizeError) Error() string {
	return fmt.Sprintf("group %q has %d samples, need at least %d", e.Group, e.N, e.Need)
}

// ConvergenceWarning is a soft failure: the accompanying result is usable but
// should be treated as low confidence.
type ConvergenceWarning struct {
	Stress     float64
	Limit      float64
	Iterations int
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf("stress %.4f exceeds %.4f after %d iterations", e.Stress, e.Limit, e.Iterations)
}
