package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pstorage "github.com/peoplehub/hr-api/internal/platform/storage"
)

const (
	maxResumeSize      = int64(10 * 1024 * 1024) // 10 MiB
	maxOfferLetterSize = int64(10 * 1024 * 1024)

	documentKindResume      = "resume"
	documentKindOfferLetter = "offer_letter"

	documentEventUploadIssued   = "document.upload.issued"
	documentEventDownloadIssued = "document.download.issued"
	documentEventArchived       = "document.archived"

	documentRefScheme = "gs://"
)

var (
	// ErrDocumentInvalidInput indicates the caller provided an invalid argument.
	ErrDocumentInvalidInput = errors.New("document: invalid input")
	// ErrDocumentForbidden indicates the caller lacks permission to access the document.
	ErrDocumentForbidden = errors.New("document: forbidden")
	// ErrDocumentSigningFailure wraps unexpected signing failures.
	ErrDocumentSigningFailure = errors.New("document: signing failure")
)

type documentKindPolicy struct {
	contentTypes []string
	maxSize      int64
}

var documentKindPolicies = map[string]documentKindPolicy{
	documentKindResume: {
		contentTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
		maxSize: maxResumeSize,
	},
	documentKindOfferLetter: {
		contentTypes: []string{"application/pdf"},
		maxSize:      maxOfferLetterSize,
	},
}

// SignedURLIssuer generates signed URLs for bucket objects.
type SignedURLIssuer interface {
	SignedURL(ctx context.Context, bucket, object string, opts pstorage.SignedURLOptions) (pstorage.SignedURLResult, error)
}

// ObjectCopier duplicates bucket objects for retention copies.
type ObjectCopier interface {
	CopyObject(ctx context.Context, sourceBucket, sourceObject, destBucket, destObject string) error
}

// DocumentServiceDeps wires dependencies for the document service implementation.
type DocumentServiceDeps struct {
	URLs               SignedURLIssuer
	Copier             ObjectCopier
	ResumesBucket      string
	OfferLettersBucket string
	ExportsBucket      string
	Logger             func(ctx context.Context, event string, fields map[string]any)
}

type documentService struct {
	urls               SignedURLIssuer
	copier             ObjectCopier
	resumesBucket      string
	offerLettersBucket string
	exportsBucket      string
	logger             func(context.Context, string, map[string]any)
}

// NewDocumentService constructs a DocumentService backed by the provided dependencies.
func NewDocumentService(deps DocumentServiceDeps) (DocumentService, error) {
	if deps.URLs == nil {
		return nil, errors.New("document service: url issuer is required")
	}
	if strings.TrimSpace(deps.ResumesBucket) == "" {
		return nil, errors.New("document service: resumes bucket is required")
	}
	if strings.TrimSpace(deps.OfferLettersBucket) == "" {
		return nil, errors.New("document service: offer letters bucket is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &documentService{
		urls:               deps.URLs,
		copier:             deps.Copier,
		resumesBucket:      strings.TrimSpace(deps.ResumesBucket),
		offerLettersBucket: strings.TrimSpace(deps.OfferLettersBucket),
		exportsBucket:      strings.TrimSpace(deps.ExportsBucket),
		logger:             logger,
	}, nil
}

// IssueSignedUpload validates the request and returns a short-lived upload URL
// plus the handle the workflow stores in place of the blob.
func (s *documentService) IssueSignedUpload(ctx context.Context, cmd SignedUploadCommand) (SignedDocumentResponse, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: actor id is required", ErrDocumentInvalidInput)
	}

	kind := strings.ToLower(strings.TrimSpace(cmd.Kind))
	policy, ok := documentKindPolicies[kind]
	if !ok {
		return SignedDocumentResponse{}, fmt.Errorf("%w: document kind %q not allowed", ErrDocumentInvalidInput, cmd.Kind)
	}

	ownerRef := strings.TrimSpace(cmd.OwnerRef)
	if ownerRef == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: owner ref is required", ErrDocumentInvalidInput)
	}

	fileName := strings.TrimSpace(cmd.FileName)
	if fileName == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: file name is required", ErrDocumentInvalidInput)
	}

	if cmd.SizeBytes <= 0 {
		return SignedDocumentResponse{}, fmt.Errorf("%w: size_bytes must be positive", ErrDocumentInvalidInput)
	}
	if cmd.SizeBytes > policy.maxSize {
		return SignedDocumentResponse{}, fmt.Errorf("%w: size_bytes exceeds maximum (%d)", ErrDocumentInvalidInput, policy.maxSize)
	}

	bucket, object, err := s.objectForUpload(kind, actorID, ownerRef, fileName)
	if err != nil {
		return SignedDocumentResponse{}, fmt.Errorf("%w: %v", ErrDocumentInvalidInput, err)
	}

	result, err := s.urls.SignedURL(ctx, bucket, object, pstorage.SignedURLOptions{
		Upload: &pstorage.UploadOptions{
			ContentType:         strings.TrimSpace(cmd.ContentType),
			AllowedContentTypes: policy.contentTypes,
			MaxSize:             policy.maxSize,
		},
	})
	if err != nil {
		return SignedDocumentResponse{}, s.mapSigningError(err)
	}

	response := SignedDocumentResponse{
		DocumentRef: documentRefScheme + bucket + "/" + object,
		URL:         result.URL,
		Method:      result.Method,
		Headers:     result.Headers,
		ExpiresAt:   result.ExpiresAt,
	}

	s.logger(ctx, documentEventUploadIssued, map[string]any{
		"actorId":     actorID,
		"kind":        kind,
		"documentRef": response.DocumentRef,
		"expiresAt":   response.ExpiresAt,
	})

	return response, nil
}

// IssueSignedDownload resolves a stored document handle into a short-lived
// download URL. Role checks for who may request which handle happen at the
// route boundary.
func (s *documentService) IssueSignedDownload(ctx context.Context, cmd SignedDownloadCommand) (SignedDocumentResponse, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return SignedDocumentResponse{}, fmt.Errorf("%w: actor id is required", ErrDocumentInvalidInput)
	}

	bucket, object, err := parseDocumentRef(cmd.DocumentRef)
	if err != nil {
		return SignedDocumentResponse{}, err
	}

	result, err := s.urls.SignedURL(ctx, bucket, object, pstorage.SignedURLOptions{
		Download: &pstorage.DownloadOptions{
			ExpiresIn:      5 * time.Minute,
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return SignedDocumentResponse{}, s.mapSigningError(err)
	}

	response := SignedDocumentResponse{
		DocumentRef: documentRefScheme + bucket + "/" + object,
		URL:         result.URL,
		Method:      result.Method,
		Headers:     result.Headers,
		ExpiresAt:   result.ExpiresAt,
	}

	s.logger(ctx, documentEventDownloadIssued, map[string]any{
		"actorId":     actorID,
		"documentRef": response.DocumentRef,
		"expiresAt":   response.ExpiresAt,
	})

	return response, nil
}

// ArchiveDocument copies the referenced object into the exports bucket,
// preserving the source bucket name as the leading path segment.
func (s *documentService) ArchiveDocument(ctx context.Context, cmd ArchiveDocumentCommand) (ArchivedDocument, error) {
	if s.copier == nil || s.exportsBucket == "" {
		return ArchivedDocument{}, errors.New("document service: archive destination not configured")
	}

	bucket, object, err := parseDocumentRef(cmd.DocumentRef)
	if err != nil {
		return ArchivedDocument{}, err
	}
	if bucket != s.resumesBucket && bucket != s.offerLettersBucket {
		return ArchivedDocument{}, fmt.Errorf("%w: bucket %q is not archivable", ErrDocumentInvalidInput, bucket)
	}

	archiveObject := bucket + "/" + object
	if err := s.copier.CopyObject(ctx, bucket, object, s.exportsBucket, archiveObject); err != nil {
		return ArchivedDocument{}, fmt.Errorf("document service: archive copy: %w", err)
	}

	archived := ArchivedDocument{
		SourceRef:  documentRefScheme + bucket + "/" + object,
		ArchiveRef: documentRefScheme + s.exportsBucket + "/" + archiveObject,
	}

	s.logger(ctx, documentEventArchived, map[string]any{
		"sourceRef":  archived.SourceRef,
		"archiveRef": archived.ArchiveRef,
	})

	return archived, nil
}

func (s *documentService) objectForUpload(kind, actorID, ownerRef, fileName string) (string, string, error) {
	switch kind {
	case documentKindResume:
		object, err := pstorage.BuildObjectPath(pstorage.PurposeResume, pstorage.PathParams{
			CandidateID:   actorID,
			ApplicationID: ownerRef,
			FileName:      fileName,
		})
		if err != nil {
			return "", "", err
		}
		return s.resumesBucket, object, nil
	case documentKindOfferLetter:
		object, err := pstorage.BuildObjectPath(pstorage.PurposeOfferLetter, pstorage.PathParams{
			OfferID:  ownerRef,
			FileName: fileName,
		})
		if err != nil {
			return "", "", err
		}
		return s.offerLettersBucket, object, nil
	default:
		return "", "", fmt.Errorf("document kind %q not allowed", kind)
	}
}

func (s *documentService) mapSigningError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pstorage.ErrPermissionDenied):
		return ErrDocumentForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrDocumentSigningFailure, err)
	}
}

func parseDocumentRef(ref string) (string, string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, documentRefScheme) {
		return "", "", fmt.Errorf("%w: document ref must use %s scheme", ErrDocumentInvalidInput, documentRefScheme)
	}
	rest := strings.TrimPrefix(trimmed, documentRefScheme)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: document ref is malformed", ErrDocumentInvalidInput)
	}
	return parts[0], parts[1], nil
}
