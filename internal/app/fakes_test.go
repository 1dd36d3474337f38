package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ehtisham-afzal/outline/internal/editor"
	"github.com/ehtisham-afzal/outline/internal/export"
	"github.com/ehtisham-afzal/outline/internal/gitrepo"
	"github.com/ehtisham-afzal/outline/internal/notify"
	"github.com/ehtisham-afzal/outline/internal/search"
	"github.com/ehtisham-afzal/outline/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	documents map[string]store.Document
	steps     map[string][]store.StepBatch
	pingFn    func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{documents: map[string]store.Document{}, steps: map[string][]store.StepBatch{}}
}

func (f *fakeStore) ListDocuments(context.Context) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Document, 0, len(f.documents))
	for _, item := range f.documents {
		items = append(items, item)
	}
	return items, nil
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) InsertDocument(_ context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[item.ID]; ok {
		return store.ErrDuplicate
	}
	item.Version = 0
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) AppendSteps(_ context.Context, item store.Document, batch store.StepBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.documents[item.ID]
	if !ok || current.Version != batch.Version-1 {
		return store.ErrVersionConflict
	}
	item.Version = batch.Version
	item.UpdatedAt = time.Now().UTC()
	f.documents[item.ID] = item
	f.steps[item.ID] = append(f.steps[item.ID], batch)
	return nil
}

func (f *fakeStore) StepsSince(_ context.Context, id string, version int) ([]store.StepBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.StepBatch
	for _, batch := range f.steps[id] {
		if batch.Version > version {
			out = append(out, batch)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeGit struct {
	mu        sync.Mutex
	ensured   map[string]gitrepo.Content
	commits   map[string][]string
	historyFn func(string, int) ([]store.CommitInfo, error)
	commitErr error
}

func newFakeGit() *fakeGit {
	return &fakeGit{ensured: map[string]gitrepo.Content{}, commits: map[string][]string{}}
}

func (f *fakeGit) EnsureDocumentRepo(id string, initial gitrepo.Content, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[id] = initial
	return nil
}

func (f *fakeGit) CommitContent(id string, content gitrepo.Content, _, message string) (store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return store.CommitInfo{}, f.commitErr
	}
	f.commits[id] = append(f.commits[id], message)
	return store.CommitInfo{Hash: "abc1234", Message: message}, nil
}

func (f *fakeGit) GetContentByHash(id, hash string) (gitrepo.Content, store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.ensured[id]
	if !ok || hash != "abc1234" {
		return gitrepo.Content{}, store.CommitInfo{}, store.ErrNotFound
	}
	return content, store.CommitInfo{Hash: hash, Message: "Import document"}, nil
}

func (f *fakeGit) History(id string, limit int) ([]store.CommitInfo, error) {
	if f.historyFn != nil {
		return f.historyFn(id, limit)
	}
	return []store.CommitInfo{}, nil
}

type fakeSearch struct {
	mu       sync.Mutex
	indexed  map[string][]search.SectionRecord
	response search.Response
	queries  []search.Query
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.response
}

func (f *fakeSearch) IndexDocument(doc search.DocumentRecord, sections []search.SectionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[doc.ID] = sections
}

type testEnv struct {
	svc    *Service
	store  *fakeStore
	git    *fakeGit
	search *fakeSearch
	events []DocumentEvent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager, err := editor.NewManager(editor.Options{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	env := &testEnv{
		store:  newFakeStore(),
		git:    newFakeGit(),
		search: &fakeSearch{indexed: map[string][]search.SectionRecord{}},
	}
	bus := notify.NewBus()
	sub := bus.Subscribe(notify.DocumentChanged, func(_ notify.Topic, payload any) {
		env.events = append(env.events, payload.(DocumentEvent))
	})
	t.Cleanup(sub.Close)

	env.svc, err = New(Deps{
		Store:    env.store,
		Git:      env.git,
		Search:   env.search,
		Exporter: export.NewService(nil),
		Manager:  manager,
		Bus:      bus,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return env
}

func (e *testEnv) importDoc(t *testing.T, text string) DocumentView {
	t.Helper()
	view, err := e.svc.ImportMarkdown(context.Background(), "", text, "avery")
	if err != nil {
		t.Fatalf("import markdown: %v", err)
	}
	return view
}
