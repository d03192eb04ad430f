package cmd

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/vizcheck-cli/internal/remote"
	"github.com/KaramelBytes/vizcheck-cli/internal/session"
	"github.com/KaramelBytes/vizcheck-cli/internal/table"
	"github.com/KaramelBytes/vizcheck-cli/internal/testlog"
)

// failedError is returned when a comparison has at least one mismatch.
type failedError struct {
	mismatched int
	total      int
}

func (e *failedError) Error() string {
	return fmt.Sprintf("validation failed: %d of %d groups mismatched", e.mismatched, e.total)
}

// describeError adds a user-facing hint for the common error classes.
func describeError(err error) string {
	var (
		cfgErr  *table.ConfigError
		authErr *remote.AuthError
		rlErr   *remote.RateLimitError
		brErr   *remote.BadRequestError
		sErr    *remote.ServerError
		apiErr  *remote.APIError
		misErr  *remote.AlignmentError
		busyErr *testlog.ConflictError
		failErr *failedError
	)
	switch {
	case errors.As(err, &failErr):
		return err.Error()
	case errors.As(err, &cfgErr):
		if cfgErr.Column == "" {
			return err.Error()
		}
		return fmt.Sprintf("%v. Check the column names with 'vizcheck columns <file>'", err)
	case errors.As(err, &misErr):
		if misErr.Labels != misErr.Values {
			return fmt.Sprintf("%v (%d labels, %d values). Check labels_path and values_path", err, misErr.Labels, misErr.Values)
		}
		return fmt.Sprintf("%v. Check labels_path and values_path", err)
	case errors.As(err, &authErr):
		return fmt.Sprintf("%v. Set VIZCHECK_API_TOKEN or 'vizcheck config set api_token <token>'", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Sprintf("%v. Try again in ~%ds", err, int(rlErr.RetryAfter.Seconds()))
		}
		return fmt.Sprintf("%v. Please retry", err)
	case errors.As(err, &brErr):
		return fmt.Sprintf("%v. Check chart_endpoint and the prompt", err)
	case errors.As(err, &sErr):
		return fmt.Sprintf("%v. The chart service appears unavailable, retry later", err)
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == 0 {
			return fmt.Sprintf("%v. Check api_base_url and your network", err)
		}
		return err.Error()
	case errors.As(err, &busyErr):
		return fmt.Sprintf("%v. Another run is writing the log, try again", err)
	case errors.Is(err, session.ErrNotReady):
		return fmt.Sprintf("%v. Run the earlier steps first", err)
	}
	return err.Error()
}
