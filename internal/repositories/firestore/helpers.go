package firestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		trimmed = append(trimmed, strings.TrimSpace(value))
	}
	return slices.Clone(trimmed)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

func chooseTime(primary time.Time, fallback time.Time) time.Time {
	if !primary.IsZero() {
		return primary.UTC()
	}
	if !fallback.IsZero() {
		return fallback.UTC()
	}
	return time.Time{}
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	if value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}

func optionalDocString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func docStringPointer(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// encodeCursorToken produces the opaque page token shared by list queries
// ordered on a timestamp plus document ID tie-breaker.
func encodeCursorToken(ts time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", ts.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeCursorToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

func normaliseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(values))
	seen := make(map[string]struct{})
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	// Firestore in clause supports up to 10 values.
	if len(normalized) > 10 {
		normalized = normalized[:10]
	}
	return normalized
}

func candidateDocPath(candidateID string) string {
	trimmed := strings.TrimSpace(candidateID)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/candidates/") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "candidates/") {
		return "/" + trimmed
	}
	return "/candidates/" + trimmed
}

func extractCandidateID(ref string, uid string) string {
	if trimmed := strings.TrimSpace(uid); trimmed != "" {
		return trimmed
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(ref), "/")
	const prefix = "candidates/"
	if strings.HasPrefix(trimmed, prefix) {
		return trimmed[len(prefix):]
	}
	return trimmed
}
