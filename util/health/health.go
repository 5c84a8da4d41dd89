// Package health combines the health checks of a service's dependencies into a single JSON report.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Check is a named dependency check. Check returns an http status, a message or JSON object,
// and an optional error.
type Check struct {
	Name  string
	Check func(ctx context.Context, checkLiveness bool) (int, string, error)
}

// CheckAll runs every check and reports 503 if any of them is unhealthy.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	var (
		overallStatus = http.StatusOK
		messages      = make([]string, 0, len(checks))
	)

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			overallStatus = http.StatusServiceUnavailable
		}

		errStr := "<nil>"
		if err != nil {
			errStr = strings.ReplaceAll(err.Error(), `"`, `'`)
		}

		var msg string

		if len(message) > 0 && message[0] == '{' && message[len(message)-1] == '}' {
			msg = fmt.Sprintf(`{"resource": "%s", "status": "%d", "error": "%s", "dependencies": [%s]}`, check.Name, status, errStr, message)
		} else {
			msg = fmt.Sprintf(`{"resource": "%s", "status": "%d", "error": "%s", "message": "%s"}`, check.Name, status, errStr, message)
		}

		messages = append(messages, msg)
	}

	return overallStatus, fmt.Sprintf(`{"status":"%d", "dependencies":[%s]}`, overallStatus, strings.Join(messages, ",\n")), nil
}
