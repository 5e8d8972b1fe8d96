package smile

import (
	"errors"
	"fmt"
)

// ErrConfig marks unusable configurations: unknown method, scorer, or
// reinit names, and channel counts that contradict the model topology.
// Callers match it with errors.Is. A pass that fails with ErrConfig has
// not mutated the source model.
var ErrConfig = errors.New("invalid configuration")

func ConfigErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConfig)...)
}
