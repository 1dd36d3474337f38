package search

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/log"
)

// Index is a searchable store that documents can be pushed into.
type Index interface {
	Searcher
	IndexDocument(doc DocumentRecord, sections []SectionRecord) error
	DeleteDocument(id string) error
}

// Service is the facade that tries the index first and falls back to
// PostgreSQL full-text search.
type Service struct {
	index    Index
	fallback Searcher
	wg       sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.index = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	return s
}

// NewServiceWith builds a service from arbitrary backends; either may be nil.
func NewServiceWith(index Index, fallback Searcher) *Service {
	return &Service{index: index, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Get().Warn("index search failed, falling back", zap.Error(err))
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Get().Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument pushes a document and its sections in the background.
func (s *Service) IndexDocument(doc DocumentRecord, sections []SectionRecord) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.IndexDocument(doc, sections); err != nil {
			log.Get().Warn("index document", zap.String("document", doc.ID), zap.Error(err))
		}
	}()
}

// DeleteDocument removes a document from the index in the background.
func (s *Service) DeleteDocument(id string) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.DeleteDocument(id); err != nil {
			log.Get().Warn("delete document from index", zap.String("document", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every stored document into the index; sections
// derives the heading sections of each one.
func (s *Service) ReindexAllFromPG(ctx context.Context, pgfts *PgFTS, sections func(DocumentRecord) []SectionRecord) {
	if s.index == nil || !s.index.Healthy() || pgfts == nil {
		return
	}
	documents, err := pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Get().Error("reindex load failed", zap.Error(err))
		return
	}
	for _, doc := range documents {
		s.IndexDocument(doc, sections(doc))
	}
}

// Wait blocks until background index updates have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
