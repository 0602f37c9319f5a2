package monitoring

import (
	"net/url"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
)

// ValidateProbeTarget validates the probe URL and timeout
func ValidateProbeTarget(target string, timeout time.Duration) error {
	if target == "" {
		return errors.NewValidationError("probe URL is required", nil)
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return errors.NewValidationError("invalid probe URL: "+target, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.NewValidationError("probe URL scheme must be http or https: "+target, nil)
	}

	if parsed.Host == "" {
		return errors.NewValidationError("probe URL host is required: "+target, nil)
	}

	if timeout <= 0 {
		return errors.NewValidationError("probe timeout must be positive", nil)
	}

	return nil
}
