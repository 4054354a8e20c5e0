package engine

import "errors"

// ErrStepMismatch is returned by staleness-guarded assembly helpers when the
// session advanced past the step the work was started for.  The result is
// silently discarded; this error never reaches the user.
var ErrStepMismatch = errors.New("engine: session step changed during async work")
