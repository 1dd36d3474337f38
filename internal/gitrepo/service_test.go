package gitrepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDocumentRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{
		Title:    "Doc",
		Markdown: "# Doc\n\nfirst line\n",
		Doc: json.RawMessage(`{
			"type":"doc",
			"content":[
				{"type":"heading","attrs":{"level":1},"content":[{"type":"text","text":"Doc"}]},
				{"type":"paragraph","content":[{"type":"text","text":"first line"}]}
			]
		}`),
	}

	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}
	for _, name := range []string{markdownFile, snapshotFile} {
		if _, err := os.Stat(filepath.Join(tempDir, "doc-1", name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "ignored"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() on existing repo error = %v", err)
	}

	updated := initial
	updated.Markdown = "# Doc\n\nsecond line\nthird line\n"
	commit, err := svc.CommitContent("doc-1", updated, "Avery", "Rewrite body")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if commit.Added != 2 || commit.Removed != 1 {
		t.Fatalf("expected +2 -1 lines, got +%d -%d", commit.Added, commit.Removed)
	}

	history, err := svc.History("doc-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != commit.Hash || history[1].Message != "Import document" {
		t.Fatalf("unexpected history order: %+v", history)
	}

	changed, info, err := svc.GetContentByHash("doc-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if changed.Markdown != updated.Markdown || info.Hash != commit.Hash {
		t.Fatalf("unexpected content: %+v", changed)
	}

	first, _, err := svc.GetContentByHash("doc-1", history[1].Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if first.Markdown != initial.Markdown || first.Title != "Doc" {
		t.Fatalf("unexpected first revision: %+v", first)
	}
	if HasChanges(first, first) || !HasChanges(first, changed) {
		t.Fatal("HasChanges disagrees with the revisions")
	}

	same, err := svc.CommitContent("doc-1", updated, "Avery", "No-op")
	if err != nil {
		t.Fatalf("CommitContent() unchanged error = %v", err)
	}
	if same.Hash != commit.Hash {
		t.Fatalf("unchanged content created commit %s, want head %s", same.Hash, commit.Hash)
	}
}

func TestSnapshotRoundTripPreservesStructure(t *testing.T) {
	svc := New(t.TempDir())

	initial := Content{
		Title:    "Doc",
		Markdown: "# Doc",
		Doc: json.RawMessage(`{
			"type":"doc",
			"content":[
				{"type":"heading","attrs":{"level":1,"collapsed":true},"content":[{"type":"text","text":"Doc"}]},
				{"type":"bullet_list","content":[
					{"type":"list_item","content":[{"type":"paragraph","content":[{"type":"text","text":"One"}]}]}
				]},
				{"type":"code_block","attrs":{"language":"go"},"content":[{"type":"text","text":"x := 1"}]}
			]
		}`),
	}
	if err := svc.EnsureDocumentRepo("doc-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	got, _, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	var want, have any
	if err := json.Unmarshal(initial.Doc, &want); err != nil {
		t.Fatalf("decode initial doc: %v", err)
	}
	if err := json.Unmarshal(got.Doc, &have); err != nil {
		t.Fatalf("decode stored doc: %v", err)
	}
	if diff := cmp.Diff(want, have); diff != "" {
		t.Fatalf("doc mismatch after round-trip (-want +got):\n%s", diff)
	}
	if got.Title != initial.Title || got.Markdown != initial.Markdown {
		t.Fatalf("content mismatch: %+v", got)
	}
}

func TestConcurrentCommitContent(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureDocumentRepo("doc-1", Content{Title: "Doc", Markdown: "start"}, "Avery"); err != nil {
		t.Fatalf("EnsureDocumentRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := Content{Title: "Doc", Markdown: fmt.Sprintf("body-%02d", idx)}
			if _, err := svc.CommitContent("doc-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("CommitContent() concurrent error = %v", err)
	}

	history, err := svc.History("doc-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d commits in history, got %d", writers+1, len(history))
	}

	head, _, err := svc.GetHeadContent("doc-1")
	if err != nil {
		t.Fatalf("GetHeadContent() error = %v", err)
	}
	if !strings.HasPrefix(head.Markdown, "body-") {
		t.Fatalf("unexpected head content after concurrent commits: %+v", head)
	}
}
