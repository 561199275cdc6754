package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"docsign/internal/document/models"
	"docsign/pkg/authz"
	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
	"docsign/pkg/platform/audit"
	"docsign/pkg/platform/strings"
)

// Batch applies one operation to many documents. Each item runs the
// single-document operation with identical preconditions; a failed item is
// reported in its result and never cancels its siblings. Results keep the
// order of the deduplicated request ids.
func (s *Service) Batch(ctx context.Context, p authz.Principal, req models.BatchRequest) (*models.BatchResult, error) {
	if err := p.RequireAuthenticated(); err != nil {
		return nil, err
	}
	run, err := s.batchOperation(req)
	if err != nil {
		return nil, err
	}
	rawIDs := strings.DedupeAndTrim(req.DocumentIDs)
	if len(rawIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "documentIds must not be empty")
	}
	if len(rawIDs) > s.maxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d documents per batch", s.maxBatchSize))
	}

	known, err := s.prefetch(ctx, rawIDs)
	if err != nil {
		return nil, err
	}

	results := make([]models.BatchItemResult, len(rawIDs))
	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)
	for i, raw := range rawIDs {
		g.Go(func() error {
			results[i] = s.batchItem(ctx, req.Operation, raw, func(docID id.DocumentID) error {
				if _, ok := known[docID]; !ok {
					return dErrors.New(dErrors.CodeNotFound, "document not found")
				}
				return run(ctx, p, docID)
			})
			return nil
		})
	}
	_ = g.Wait()

	out := &models.BatchResult{Operation: req.Operation, Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "batch completed",
			"operation", string(req.Operation),
			"succeeded", out.Succeeded,
			"failed", out.Failed,
		)
	}
	return out, nil
}

// prefetch loads every parseable id in one round trip so missing documents
// fail without taking row locks.
func (s *Service) prefetch(ctx context.Context, rawIDs []string) (map[id.DocumentID]struct{}, error) {
	ids := make([]id.DocumentID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if docID, err := id.ParseDocumentID(raw); err == nil {
			ids = append(ids, docID)
		}
	}
	known := make(map[id.DocumentID]struct{}, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	docs, err := s.documents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch documents")
	}
	for _, doc := range docs {
		known[doc.ID] = struct{}{}
	}
	return known, nil
}

type batchFunc func(ctx context.Context, p authz.Principal, docID id.DocumentID) error

func (s *Service) batchOperation(req models.BatchRequest) (batchFunc, error) {
	switch req.Operation {
	case models.BatchSign:
		certID, err := id.ParseCertificateID(req.CertificateID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "certificateId is required for batch sign")
		}
		return func(ctx context.Context, p authz.Principal, docID id.DocumentID) error {
			_, err := s.sign(ctx, p, docID, certID, audit.EventDocumentSignedBatch)
			return err
		}, nil
	case models.BatchRevoke:
		reason := req.Reason
		if reason == "" {
			reason = models.DefaultBatchRevokeReason
		}
		return func(ctx context.Context, p authz.Principal, docID id.DocumentID) error {
			_, err := s.revoke(ctx, p, docID, reason, audit.EventDocumentRevokedBatch)
			return err
		}, nil
	case models.BatchDelete:
		return func(ctx context.Context, p authz.Principal, docID id.DocumentID) error {
			return s.delete(ctx, p, docID, audit.EventDocumentDeletedBatch)
		}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "operation must be one of sign, revoke, delete")
	}
}

func (s *Service) batchItem(ctx context.Context, op models.BatchOperation, raw string, fn func(id.DocumentID) error) models.BatchItemResult {
	result := models.BatchItemResult{DocumentID: raw}
	docID, err := id.ParseDocumentID(raw)
	if err == nil {
		err = fn(docID)
	}
	if s.metrics != nil {
		s.metrics.IncrementBatchItem(string(op), err == nil)
	}
	if err != nil {
		result.Error = string(dErrors.CodeOf(err))
		result.Message = dErrors.MessageOf(err)
		return result
	}
	result.Success = true
	return result
}
