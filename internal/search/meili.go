package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/log"
)

const (
	idxDocuments = "outline_documents"
	idxSections  = "outline_sections"

	defaultLimit = 20
)

type meiliIndex struct {
	uid        string
	kind       ResultType
	filterable []string
	searchable []string
}

// Searchable attributes are listed by rank: a match in a heading outranks
// one in the body.
var meiliIndexes = []meiliIndex{
	{uid: idxDocuments, kind: ResultDocument, searchable: []string{"title", "body"}},
	{uid: idxSections, kind: ResultSection, filterable: []string{"documentId", "level"}, searchable: []string{"heading", "body", "title"}},
}

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error: the client stays unhealthy until the
// background health check sees it recover.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}
	if m.probe() {
		m.configureIndexes()
	} else {
		log.Get().Warn("meilisearch unavailable", zap.String("url", url))
	}
	go m.watch(10 * time.Second)
	return m
}

func (m *Meili) probe() bool {
	_, err := m.client.Health()
	m.healthy.Store(err == nil)
	return err == nil
}

func (m *Meili) configureIndexes() {
	for _, spec := range meiliIndexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: spec.uid, PrimaryKey: "id"}); err != nil {
			log.Get().Debug("create index", zap.String("index", spec.uid), zap.Error(err))
		}
		index := m.client.Index(spec.uid)
		if len(spec.filterable) > 0 {
			attrs := make([]interface{}, 0, len(spec.filterable))
			for _, a := range spec.filterable {
				attrs = append(attrs, a)
			}
			if _, err := index.UpdateFilterableAttributes(&attrs); err != nil {
				log.Get().Warn("set filterable attributes", zap.String("index", spec.uid), zap.Error(err))
			}
		}
		searchable := spec.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Get().Warn("set searchable attributes", zap.String("index", spec.uid), zap.Error(err))
		}
	}
}

// watch re-probes the server and reconfigures the indexes when it comes back.
func (m *Meili) watch(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			was := m.healthy.Load()
			if m.probe() && !was {
				log.Get().Info("meilisearch recovered")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the document and section indexes in one multi-search and
// concatenates the hits, documents first.
func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit == 0 {
		limit = defaultLimit
	}

	kinds := make(map[string]ResultType, len(meiliIndexes))
	var queries []*meili.SearchRequest
	for _, spec := range meiliIndexes {
		if q.FilterType != "" && q.FilterType != spec.kind {
			continue
		}
		// A document filter narrows the search to headings of that document.
		if q.DocumentID != "" && spec.kind == ResultDocument {
			continue
		}
		req := &meili.SearchRequest{
			IndexUID:              spec.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if q.DocumentID != "" {
			req.Filter = fmt.Sprintf("documentId = %q", q.DocumentID)
		}
		kinds[spec.uid] = spec.kind
		queries = append(queries, req)
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var (
		results []Result
		total   int
	)
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := kinds[sr.IndexUID]
		for _, hit := range sr.Hits {
			r, err := decodeHit(hit, kind)
			if err != nil {
				log.Get().Debug("skip undecodable hit", zap.String("index", sr.IndexUID), zap.Error(err))
				continue
			}
			results = append(results, r)
		}
	}
	return results, total, nil
}

// indexedHit covers the fields of both indexes; _formatted holds the
// highlighted copies.
type indexedHit struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	Title      string         `json:"title"`
	Heading    string         `json:"heading"`
	Anchor     string         `json:"anchor"`
	Formatted  map[string]any `json:"_formatted"`
}

func (h indexedHit) highlighted(key, fallback string) string {
	if s, ok := h.Formatted[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}

func decodeHit(hit meili.Hit, kind ResultType) (Result, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Result{}, err
	}
	var h indexedHit
	if err := json.Unmarshal(raw, &h); err != nil {
		return Result{}, err
	}
	r := Result{Type: kind, ID: h.ID, Snippet: h.highlighted("body", "")}
	switch kind {
	case ResultDocument:
		r.Title = h.highlighted("title", h.Title)
		r.DocumentID = h.ID
	case ResultSection:
		r.Title = h.highlighted("heading", h.Heading)
		r.DocumentID = h.DocumentID
		r.Anchor = h.Anchor
	}
	return r, nil
}

// IndexDocument adds or replaces a document and its sections. Sections of
// the previous revision are removed first so renamed headings do not linger.
func (m *Meili) IndexDocument(doc DocumentRecord, sections []SectionRecord) error {
	if _, err := m.client.Index(idxDocuments).AddDocuments([]DocumentRecord{doc}, nil); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	if err := m.clearSections(doc.ID); err != nil {
		return err
	}
	if len(sections) == 0 {
		return nil
	}
	if _, err := m.client.Index(idxSections).AddDocuments(sections, nil); err != nil {
		return fmt.Errorf("index sections of %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document and its sections from the index.
func (m *Meili) DeleteDocument(id string) error {
	if _, err := m.client.Index(idxDocuments).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return m.clearSections(id)
}

func (m *Meili) clearSections(documentID string) error {
	filter := fmt.Sprintf("documentId = %q", documentID)
	if _, err := m.client.Index(idxSections).DeleteDocumentsByFilter(filter, nil); err != nil {
		return fmt.Errorf("clear sections of %s: %w", documentID, err)
	}
	return nil
}
