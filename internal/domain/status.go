package domain

import (
	"fmt"
	"strings"
)

// providerVocabulary maps provider-reported status strings onto the internal
// four-state taxonomy. Keys are upper-cased. Kinds share the common table and
// may add their own words on top of it.
var providerVocabulary = map[JobKind]map[string]JobStatus{
	"": {
		"IN_QUEUE":    JobStatusInQueue,
		"QUEUED":      JobStatusInQueue,
		"PENDING":     JobStatusInQueue,
		"IN_PROGRESS": JobStatusProcessing,
		"PROCESSING":  JobStatusProcessing,
		"RUNNING":     JobStatusProcessing,
		"COMPLETED":   JobStatusCompleted,
		"SUCCEEDED":   JobStatusCompleted,
		"OK":          JobStatusCompleted,
		"FAILED":      JobStatusFailed,
		"ERROR":       JobStatusFailed,
		"CANCELLED":   JobStatusFailed,
		"CANCELED":    JobStatusFailed,
	},
	JobKindImage: {
		// DashScope reports UNKNOWN for tasks it no longer holds.
		"UNKNOWN": JobStatusFailed,
	},
	JobKindVideo: {
		"STARTING":  JobStatusProcessing,
		"RENDERING": JobStatusProcessing,
	},
	JobKindProductShot: {
		"WAITING":    JobStatusInQueue,
		"GENERATING": JobStatusProcessing,
		"DONE":       JobStatusCompleted,
		"SUCCESS":    JobStatusCompleted,
	},
}

// MapProviderStatus resolves a provider status string for the given kind.
func MapProviderStatus(kind JobKind, raw string) (JobStatus, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return "", fmt.Errorf("empty provider status")
	}
	if table, ok := providerVocabulary[kind]; ok {
		if status, ok := table[key]; ok {
			return status, nil
		}
	}
	if status, ok := providerVocabulary[""][key]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown provider status %q for %s", raw, kind)
}
