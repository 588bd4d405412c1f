package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestStatementsCarryUniqueMarkers(t *testing.T) {
	statements := map[string]string{
		"QInsertJob":              QInsertJob,
		"QSelectJobByID":          QSelectJobByID,
		"QListJobsByUser":         QListJobsByUser,
		"QSetJobRequestID":        QSetJobRequestID,
		"QUpdateJobProgress":      QUpdateJobProgress,
		"QMarkJobCompleted":       QMarkJobCompleted,
		"QMarkJobFailed":          QMarkJobFailed,
		"QClaimJobForRetry":       QClaimJobForRetry,
		"QSelectIntegrationToken": QSelectIntegrationToken,
		"QUpsertIntegrationToken": QUpsertIntegrationToken,
	}
	seen := map[string]string{}
	for name, stmt := range statements {
		first := strings.SplitN(stmt, "\n", 2)[0]
		if !markerLine.MatchString(first) {
			t.Fatalf("%s: first line %q is not a marker", name, first)
		}
		if other, ok := seen[first]; ok {
			t.Fatalf("%s and %s share marker %s", name, other, first)
		}
		seen[first] = name
	}
}

func TestTerminalWritesAreConditional(t *testing.T) {
	for name, stmt := range map[string]string{
		"QUpdateJobProgress": QUpdateJobProgress,
		"QMarkJobCompleted":  QMarkJobCompleted,
		"QMarkJobFailed":     QMarkJobFailed,
	} {
		if !strings.Contains(stmt, "status not in ('completed', 'failed')") {
			t.Fatalf("%s must not overwrite terminal rows", name)
		}
	}
	if !strings.Contains(QClaimJobForRetry, "status = 'failed'") || !strings.Contains(QClaimJobForRetry, "request_id = null") {
		t.Fatalf("QClaimJobForRetry must only claim failed rows and clear the request id")
	}
	if !strings.Contains(QSetJobRequestID, "request_id is null") {
		t.Fatalf("QSetJobRequestID must not replace a stored request id")
	}
}
