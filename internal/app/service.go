package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/decoration"
	"github.com/ehtisham-afzal/outline/internal/export"
	"github.com/ehtisham-afzal/outline/internal/extension"
	"github.com/ehtisham-afzal/outline/internal/gitrepo"
	"github.com/ehtisham-afzal/outline/internal/log"
	"github.com/ehtisham-afzal/outline/internal/markdown"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/notify"
	"github.com/ehtisham-afzal/outline/internal/search"
	"github.com/ehtisham-afzal/outline/internal/state"
	"github.com/ehtisham-afzal/outline/internal/store"
	"github.com/ehtisham-afzal/outline/internal/transform"
	"github.com/ehtisham-afzal/outline/internal/util"
)

const defaultAuthor = "outline"

// DocumentView is a stored document together with the data derived from it.
type DocumentView struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Version   int                 `json:"version"`
	Doc       json.RawMessage     `json:"doc"`
	Markdown  string              `json:"markdown"`
	Anchors   []decoration.Anchor `json:"anchors"`
	Warnings  []markdown.Warning  `json:"warnings,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentEvent is published on notify.DocumentChanged after every stored
// change.
type DocumentEvent struct {
	ID       string `json:"id"`
	Version  int    `json:"version"`
	ClientID string `json:"clientId,omitempty"`
}

type SelectionInput struct {
	Anchor int  `json:"anchor"`
	Head   int  `json:"head"`
	Node   bool `json:"node"`
}

type CommandResult struct {
	Applied   bool            `json:"applied"`
	Selection state.Selection `json:"selection"`
	Steps     json.RawMessage `json:"steps,omitempty"`
	Document  *DocumentView   `json:"document,omitempty"`
}

type VersionView struct {
	Commit   store.CommitInfo `json:"commit"`
	Title    string           `json:"title"`
	Markdown string           `json:"markdown"`
	Doc      json.RawMessage  `json:"doc,omitempty"`
}

type dataStore interface {
	ListDocuments(context.Context) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) error
	AppendSteps(context.Context, store.Document, store.StepBatch) error
	StepsSince(context.Context, string, int) ([]store.StepBatch, error)
	Ping(context.Context) error
}

type gitService interface {
	EnsureDocumentRepo(string, gitrepo.Content, string) error
	CommitContent(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	GetContentByHash(string, string) (gitrepo.Content, store.CommitInfo, error)
	History(string, int) ([]store.CommitInfo, error)
}

type searcher interface {
	Search(context.Context, search.Query) search.Response
	IndexDocument(search.DocumentRecord, []search.SectionRecord)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	store    dataStore
	git      gitService
	search   searcher
	exporter exporter
	manager  *extension.Manager
	heading  *model.NodeType
	bus      *notify.Bus

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Deps are the collaborators of a Service. Search and Bus are optional.
type Deps struct {
	Store    dataStore
	Git      gitService
	Search   searcher
	Exporter exporter
	Manager  *extension.Manager
	Bus      *notify.Bus
}

func New(deps Deps) (*Service, error) {
	if deps.Manager == nil {
		return nil, errors.New("app: extension manager is required")
	}
	heading, err := deps.Manager.Schema().NodeType("heading")
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	bus := deps.Bus
	if bus == nil {
		bus = notify.Default()
	}
	return &Service{
		store:    deps.Store,
		git:      deps.Git,
		search:   deps.Search,
		exporter: deps.Exporter,
		manager:  deps.Manager,
		heading:  heading,
		bus:      bus,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

const welcomeMarkdown = `# Welcome

This document was created on first start.

## Headings

Every heading gets an anchor you can link to.

## Formatting

Text can be **strong**, *emphasized*, ~~struck~~ or ` + "`code`" + `.
`

// Bootstrap imports a welcome document into an empty store.
func (s *Service) Bootstrap(ctx context.Context) error {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(documents) > 0 {
		return nil
	}
	_, err = s.ImportMarkdown(ctx, "Welcome", welcomeMarkdown, defaultAuthor)
	return err
}

func (s *Service) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	items, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]DocumentSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, DocumentSummary{ID: item.ID, Title: item.Title, Version: item.Version, UpdatedAt: item.UpdatedAt})
	}
	return summaries, nil
}

// ImportMarkdown parses text into a new document. Unsupported markdown is
// kept as plain text and reported in the view's warnings.
func (s *Service) ImportMarkdown(ctx context.Context, title, text, author string) (DocumentView, error) {
	doc, warnings, err := s.manager.Parser().Parse(text)
	if err != nil {
		return DocumentView{}, domainError(http.StatusUnprocessableEntity, "INVALID_MARKDOWN", err.Error(), nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.firstHeading(doc)
	}
	if author == "" {
		author = defaultAuthor
	}

	content, err := json.Marshal(doc.ToJSON())
	if err != nil {
		return DocumentView{}, fmt.Errorf("encode document: %w", err)
	}
	item := store.Document{
		ID:       util.NewID("doc"),
		Title:    title,
		Content:  content,
		Markdown: s.manager.Serializer().Serialize(doc),
	}

	if err := s.git.EnsureDocumentRepo(item.ID, gitrepo.Content{Title: item.Title, Markdown: item.Markdown, Doc: content}, author); err != nil {
		return DocumentView{}, fmt.Errorf("create document history: %w", err)
	}
	if err := s.store.InsertDocument(ctx, item); err != nil {
		return DocumentView{}, err
	}
	item.UpdatedAt = time.Now().UTC()

	s.index(item, doc)
	s.publish(DocumentEvent{ID: item.ID, Version: item.Version})

	view := s.view(item, doc)
	view.Warnings = warnings
	return view, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (DocumentView, error) {
	item, doc, err := s.load(ctx, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	return s.view(item, doc), nil
}

func (s *Service) Anchors(ctx context.Context, documentID string) ([]decoration.Anchor, error) {
	_, doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.anchors(doc), nil
}

// ApplyTransaction applies a JSON array of steps written against
// baseVersion. A stale base version is a conflict; the client is expected
// to fetch the missing steps and rebase.
func (s *Service) ApplyTransaction(ctx context.Context, documentID string, baseVersion int, steps json.RawMessage, clientID string) (DocumentView, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	item, doc, err := s.load(ctx, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	if baseVersion != item.Version {
		return DocumentView{}, versionConflict(item.Version)
	}

	st, err := s.newState(doc, nil)
	if err != nil {
		return DocumentView{}, err
	}
	next, tr, err := st.ApplyJSON(steps)
	if err != nil {
		return DocumentView{}, err
	}
	if !tr.DocChanged() {
		return s.view(item, doc), nil
	}
	message := fmt.Sprintf("Apply %d step(s)", len(tr.Steps))
	return s.persist(ctx, item, next.Doc(), steps, clientID, message)
}

// RunCommand runs the named command against the stored document with the
// given selection. Commands that do not apply leave the document alone.
func (s *Service) RunCommand(ctx context.Context, documentID, name string, attrs model.Attrs, selection SelectionInput, clientID string) (CommandResult, error) {
	cmd, ok := s.manager.Command(name, attrs)
	if !ok {
		return CommandResult{}, domainError(http.StatusNotFound, "UNKNOWN_COMMAND", fmt.Sprintf("command %q is not registered", name), map[string]any{"commands": s.manager.CommandNames()})
	}

	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	item, doc, err := s.load(ctx, documentID)
	if err != nil {
		return CommandResult{}, err
	}
	sel, err := toSelection(doc, selection)
	if err != nil {
		return CommandResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_SELECTION", err.Error(), nil)
	}
	st, err := s.newState(doc, &sel)
	if err != nil {
		return CommandResult{}, err
	}

	var tr *state.Transaction
	if !cmd(st, func(t *state.Transaction) { tr = t }) || tr == nil {
		return CommandResult{Applied: false, Selection: sel}, nil
	}
	next, err := st.Apply(tr)
	if err != nil {
		return CommandResult{}, err
	}
	result := CommandResult{Applied: true, Selection: next.Selection()}
	if !tr.DocChanged() {
		return result, nil
	}

	steps, err := transform.StepsToJSON(tr.Steps)
	if err != nil {
		return CommandResult{}, fmt.Errorf("encode steps: %w", err)
	}
	view, err := s.persist(ctx, item, next.Doc(), steps, clientID, "Run "+name)
	if err != nil {
		return CommandResult{}, err
	}
	result.Steps = steps
	result.Document = &view
	return result, nil
}

// StepsSince returns the step batches stored after version, oldest first.
func (s *Service) StepsSince(ctx context.Context, documentID string, version int) ([]store.StepBatch, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	batches, err := s.store.StepsSince(ctx, documentID, version)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []store.StepBatch{}
	}
	return batches, nil
}

func (s *Service) Export(ctx context.Context, documentID string, format export.Format, publish bool) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusNotImplemented, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	item, doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{
		Document: export.Document{
			ID:        item.ID,
			Title:     item.Title,
			Version:   item.Version,
			Markdown:  item.Markdown,
			Doc:       doc,
			Anchors:   s.anchors(doc),
			UpdatedAt: item.UpdatedAt,
		},
		Format:  format,
		Publish: publish,
	})
}

func (s *Service) History(ctx context.Context, documentID string, limit int) ([]store.CommitInfo, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.git.History(documentID, limit)
}

func (s *Service) Version(ctx context.Context, documentID, hash string) (VersionView, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return VersionView{}, err
	}
	content, commit, err := s.git.GetContentByHash(documentID, hash)
	if err != nil {
		log.Get().Debug("version lookup failed", zap.String("document", documentID), zap.String("hash", hash), zap.Error(err))
		return VersionView{}, notFound("Version")
	}
	return VersionView{Commit: commit, Title: content.Title, Markdown: content.Markdown, Doc: content.Doc}, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Sections derives the searchable heading sections of a stored record.
func (s *Service) Sections(rec search.DocumentRecord) []search.SectionRecord {
	doc, _, err := s.manager.Parser().Parse(rec.Body)
	if err != nil {
		log.Get().Warn("derive sections", zap.String("document", rec.ID), zap.Error(err))
		return nil
	}
	return search.Sections(rec.ID, rec.Title, doc, s.heading)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) persist(ctx context.Context, item store.Document, doc *model.Node, steps json.RawMessage, clientID, message string) (DocumentView, error) {
	content, err := json.Marshal(doc.ToJSON())
	if err != nil {
		return DocumentView{}, fmt.Errorf("encode document: %w", err)
	}
	item.Content = content
	item.Markdown = s.manager.Serializer().Serialize(doc)
	item.Version++

	batch := store.StepBatch{DocumentID: item.ID, Version: item.Version, Steps: steps, ClientID: clientID}
	if err := s.store.AppendSteps(ctx, item, batch); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return DocumentView{}, versionConflict(item.Version - 1)
		}
		return DocumentView{}, err
	}
	item.UpdatedAt = time.Now().UTC()

	author := clientID
	if author == "" {
		author = defaultAuthor
	}
	if _, err := s.git.CommitContent(item.ID, gitrepo.Content{Title: item.Title, Markdown: item.Markdown, Doc: content}, author, message); err != nil {
		log.Get().Warn("commit document history", zap.String("document", item.ID), zap.Int("version", item.Version), zap.Error(err))
	}

	s.index(item, doc)
	s.publish(DocumentEvent{ID: item.ID, Version: item.Version, ClientID: clientID})
	return s.view(item, doc), nil
}

func (s *Service) load(ctx context.Context, documentID string) (store.Document, *model.Node, error) {
	item, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, nil, notFound("Document")
		}
		return store.Document{}, nil, err
	}
	doc, err := model.ParseNodeJSON(s.manager.Schema(), item.Content)
	if err != nil {
		return store.Document{}, nil, fmt.Errorf("decode document %s: %w", documentID, err)
	}
	return item, doc, nil
}

func (s *Service) newState(doc *model.Node, sel *state.Selection) (*state.EditorState, error) {
	return state.Create(state.Config{
		Schema:    s.manager.Schema(),
		Doc:       doc,
		Selection: sel,
		Plugins:   s.manager.Plugins(),
	})
}

func (s *Service) view(item store.Document, doc *model.Node) DocumentView {
	return DocumentView{
		ID:        item.ID,
		Title:     item.Title,
		Version:   item.Version,
		Doc:       item.Content,
		Markdown:  item.Markdown,
		Anchors:   s.anchors(doc),
		UpdatedAt: item.UpdatedAt,
	}
}

func (s *Service) anchors(doc *model.Node) []decoration.Anchor {
	anchors := decoration.HeadingAnchors(doc, s.heading)
	if anchors == nil {
		return []decoration.Anchor{}
	}
	return anchors
}

func (s *Service) firstHeading(doc *model.Node) string {
	for _, a := range decoration.HeadingAnchors(doc, s.heading) {
		if text := strings.TrimSpace(a.Text); text != "" {
			return text
		}
	}
	return "Untitled"
}

func (s *Service) index(item store.Document, doc *model.Node) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(
		search.DocumentRecord{ID: item.ID, Title: item.Title, Body: item.Markdown},
		search.Sections(item.ID, item.Title, doc, s.heading),
	)
}

func (s *Service) publish(event DocumentEvent) {
	s.bus.Publish(notify.DocumentChanged, event)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func toSelection(doc *model.Node, in SelectionInput) (state.Selection, error) {
	if in.Node {
		return state.NodeAt(doc, in.Anchor)
	}
	sel := state.Text(in.Anchor, in.Head)
	if err := sel.Validate(doc); err != nil {
		return state.Selection{}, err
	}
	return sel, nil
}

func versionConflict(current int) *DomainError {
	return domainError(http.StatusConflict, "VERSION_CONFLICT", "Document changed since base version", map[string]any{"version": current})
}
