package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/search"
	"github.com/ehtisham-afzal/outline/internal/state"
)

const appendNow = `[{"stepType":"replace","from":19,"to":19,"slice":{"content":[{"type":"text","text":" now"}]}}]`

func TestImportMarkdownStoresIndexesAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")

	if view.Title != "Setup" {
		t.Fatalf("expected title from first heading, got %q", view.Title)
	}
	if view.Version != 0 {
		t.Fatalf("expected version 0, got %d", view.Version)
	}
	if len(view.Anchors) != 1 || view.Anchors[0].ID != "setup" {
		t.Fatalf("expected anchor setup, got %+v", view.Anchors)
	}
	if _, ok := env.git.ensured[view.ID]; !ok {
		t.Fatalf("expected history repo for %s", view.ID)
	}
	if sections := env.search.indexed[view.ID]; len(sections) != 1 || sections[0].Anchor != "setup" {
		t.Fatalf("expected one indexed section, got %+v", sections)
	}
	if len(env.events) != 1 || env.events[0].ID != view.ID {
		t.Fatalf("expected one document event, got %+v", env.events)
	}
}

func TestImportMarkdownReportsWarnings(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "<div>hi</div>\n\nafter")
	if len(view.Warnings) == 0 || view.Warnings[0].Token != "html_block" {
		t.Fatalf("expected html block warning, got %+v", view.Warnings)
	}
	if view.Title != "Untitled" {
		t.Fatalf("expected Untitled, got %q", view.Title)
	}
}

func TestApplyTransactionAdvancesVersion(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")

	next, err := env.svc.ApplyTransaction(context.Background(), view.ID, 0, json.RawMessage(appendNow), "client-a")
	if err != nil {
		t.Fatalf("apply transaction: %v", err)
	}
	if next.Version != 1 {
		t.Fatalf("expected version 1, got %d", next.Version)
	}
	if next.Markdown != "# Setup\n\nInstall it. now" {
		t.Fatalf("unexpected markdown %q", next.Markdown)
	}
	if got := env.git.commits[view.ID]; len(got) != 1 || got[0] != "Apply 1 step(s)" {
		t.Fatalf("unexpected commits %v", got)
	}
	if last := env.events[len(env.events)-1]; last.Version != 1 || last.ClientID != "client-a" {
		t.Fatalf("unexpected event %+v", last)
	}

	batches, err := env.svc.StepsSince(context.Background(), view.ID, 0)
	if err != nil {
		t.Fatalf("steps since: %v", err)
	}
	if len(batches) != 1 || batches[0].ClientID != "client-a" {
		t.Fatalf("unexpected batches %+v", batches)
	}
}

func TestApplyTransactionRejectsStaleBaseVersion(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")
	if _, err := env.svc.ApplyTransaction(context.Background(), view.ID, 0, json.RawMessage(appendNow), "a"); err != nil {
		t.Fatalf("first transaction: %v", err)
	}

	_, err := env.svc.ApplyTransaction(context.Background(), view.ID, 0, json.RawMessage(appendNow), "b")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusConflict {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if details := domainErr.Details.(map[string]any); details["version"] != 1 {
		t.Fatalf("expected current version in details, got %v", domainErr.Details)
	}
}

func TestApplyTransactionLeavesDocumentOnRejectedStep(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")

	bad := `[{"stepType":"replace","from":500,"to":501}]`
	_, err := env.svc.ApplyTransaction(context.Background(), view.ID, 0, json.RawMessage(bad), "a")
	var rejected *state.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected rejected transaction, got %v", err)
	}
	status, code, _, _ := mapError(err)
	if status != http.StatusUnprocessableEntity || code != "TRANSACTION_REJECTED" {
		t.Fatalf("unexpected mapping %d %s", status, code)
	}

	current, err := env.svc.GetDocument(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if current.Version != 0 || current.Markdown != view.Markdown {
		t.Fatalf("document changed after rejection: %+v", current)
	}
}

func TestApplyTransactionToleratesHistoryFailure(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# Setup\n\nInstall it.")
	env.git.commitErr = errors.New("disk full")

	next, err := env.svc.ApplyTransaction(context.Background(), view.ID, 0, json.RawMessage(appendNow), "a")
	if err != nil {
		t.Fatalf("apply transaction: %v", err)
	}
	if next.Version != 1 {
		t.Fatalf("expected version 1, got %d", next.Version)
	}
}

func TestRunCommandTurnsParagraphIntoHeading(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "Install it.")

	result, err := env.svc.RunCommand(context.Background(), view.ID, "heading", model.Attrs{"level": 2.0}, SelectionInput{Anchor: 1, Head: 1}, "client-a")
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !result.Applied || result.Document == nil {
		t.Fatalf("expected applied command with document, got %+v", result)
	}
	if result.Document.Markdown != "## Install it." {
		t.Fatalf("unexpected markdown %q", result.Document.Markdown)
	}
	if len(result.Document.Anchors) != 1 || result.Document.Anchors[0].Level != 2 {
		t.Fatalf("unexpected anchors %+v", result.Document.Anchors)
	}
	if len(result.Steps) == 0 {
		t.Fatal("expected serialized steps")
	}
	if got := env.git.commits[view.ID]; len(got) != 1 || got[0] != "Run heading" {
		t.Fatalf("unexpected commits %v", got)
	}
}

func TestRunCommandValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "Install it.")

	_, err := env.svc.RunCommand(context.Background(), view.ID, "teleport", nil, SelectionInput{}, "")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "UNKNOWN_COMMAND" {
		t.Fatalf("expected unknown command, got %v", err)
	}

	_, err = env.svc.RunCommand(context.Background(), view.ID, "paragraph", nil, SelectionInput{Anchor: 999, Head: 999}, "")
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_SELECTION" {
		t.Fatalf("expected invalid selection, got %v", err)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetDocument(context.Background(), "missing")
	status, code, _, _ := mapError(err)
	if status != http.StatusNotFound || code != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %s", status, code)
	}
}

func TestBootstrapImportsWelcomeOnce(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		if err := env.svc.Bootstrap(context.Background()); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
	}
	items, _ := env.svc.ListDocuments(context.Background())
	if len(items) != 1 || items[0].Title != "Welcome" {
		t.Fatalf("expected one welcome document, got %+v", items)
	}
}

func TestSectionsFromRecordMarkdown(t *testing.T) {
	env := newTestEnv(t)
	view := env.importDoc(t, "# One\n\na\n\n# Two\n\nb")
	sections := env.svc.Sections(search.DocumentRecord{ID: view.ID, Title: view.Title, Body: view.Markdown})
	if len(sections) != 2 || sections[1].Anchor != "two" {
		t.Fatalf("unexpected sections %+v", sections)
	}
}
