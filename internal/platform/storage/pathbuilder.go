package storage

import (
	"fmt"
	"strings"
	"sync"
)

// DocumentPurpose captures high-level intent for storage layout decisions.
type DocumentPurpose string

const (
	PurposeResume          DocumentPurpose = "resume"
	PurposeOfferLetter     DocumentPurpose = "offer-letter"
	PurposeClearanceExport DocumentPurpose = "clearance-export"
)

// PathParams provide required identifiers to compose storage object keys.
type PathParams struct {
	CandidateID   string
	ApplicationID string
	OfferID       string
	TerminationID string
	LetterNumber  string
	FileName      string
}

// PathBuilder composes the object path for a given document purpose.
type PathBuilder func(PathParams) (string, error)

var (
	pathBuilders = map[DocumentPurpose]PathBuilder{
		PurposeResume:          buildResumePath,
		PurposeOfferLetter:     buildOfferLetterPath,
		PurposeClearanceExport: buildClearanceExportPath,
	}
	pathBuildersMu sync.RWMutex
)

// RegisterPathBuilder overrides or registers a builder for a specific purpose.
func RegisterPathBuilder(purpose DocumentPurpose, builder PathBuilder) {
	pathBuildersMu.Lock()
	defer pathBuildersMu.Unlock()
	if builder == nil {
		delete(pathBuilders, purpose)
		return
	}
	pathBuilders[purpose] = builder
}

// BuildObjectPath resolves the storage object path for the given purpose.
func BuildObjectPath(purpose DocumentPurpose, params PathParams) (string, error) {
	pathBuildersMu.RLock()
	builder, ok := pathBuilders[purpose]
	pathBuildersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: unsupported document purpose %q", purpose)
	}
	return builder(params)
}

func buildResumePath(params PathParams) (string, error) {
	candidateID, err := validateSegment("candidateID", params.CandidateID)
	if err != nil {
		return "", err
	}
	applicationID, err := validateSegment("applicationID", params.ApplicationID)
	if err != nil {
		return "", err
	}
	fileName, err := validateFileName(params.FileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("documents/candidates/%s/resumes/%s/%s", candidateID, applicationID, fileName), nil
}

func buildOfferLetterPath(params PathParams) (string, error) {
	offerID, err := validateSegment("offerID", params.OfferID)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(params.FileName)
	if name == "" && params.LetterNumber != "" {
		name = fmt.Sprintf("%s.pdf", strings.TrimSpace(params.LetterNumber))
	}
	fileName, err := validateFileName(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("documents/offers/%s/letters/%s", offerID, fileName), nil
}

func buildClearanceExportPath(params PathParams) (string, error) {
	terminationID, err := validateSegment("terminationID", params.TerminationID)
	if err != nil {
		return "", err
	}
	fileName, err := validateFileName(params.FileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("documents/terminations/%s/exports/%s", terminationID, fileName), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
