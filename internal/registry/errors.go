package registry

import (
	"errors"
	"fmt"
)

// ErrSpotNotFound is returned by Get when the id is not registered.
// Handlers translate it into a 404 response.
var ErrSpotNotFound = errors.New("parking spot not found")

// ConfigError reports an invalid spot definition at load time.  It is fatal
// at startup.
type ConfigError struct {
	SpotID string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.SpotID == "" {
		return fmt.Sprintf("spot config: %s", e.Reason)
	}
	return fmt.Sprintf("spot config %q: %s", e.SpotID, e.Reason)
}
