// Package gitrepo keeps the revision history of each document in its own git
// repository. Every revision commits the markdown rendering next to the JSON
// snapshot, so history diffs stay readable.
package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ehtisham-afzal/outline/internal/store"
)

const (
	markdownFile = "document.md"
	snapshotFile = "document.json"
	mainBranch   = "main"
)

// Content is one revision of a document.
type Content struct {
	Title    string          `json:"title"`
	Markdown string          `json:"-"`
	Doc      json.RawMessage `json:"doc,omitempty"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureDocumentRepo creates the repository for documentID with initial as
// its first commit. An existing repository is left alone.
func (s *Service) EnsureDocumentRepo(documentID string, initial Content, author string) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.repoPath(documentID)
	switch _, err := os.Stat(dir); {
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))
	if err := repo.Storer.SetReference(head); err != nil {
		return fmt.Errorf("point HEAD at %s: %w", mainBranch, err)
	}
	_, err = writeRevision(repo, initial, author, "Import document")
	return err
}

// CommitContent records content as the newest revision. When content does
// not differ from the head revision no commit is made and the head is
// returned.
func (s *Service) CommitContent(documentID string, content Content, author, message string) (store.CommitInfo, error) {
	var info store.CommitInfo
	err := s.withRepo(documentID, func(repo *git.Repository) error {
		head, err := headCommit(repo)
		if err != nil {
			return err
		}
		current, err := readRevision(head)
		if err != nil {
			return err
		}
		if !HasChanges(current, content) {
			info = commitInfo(head)
			return nil
		}
		hash, err := writeRevision(repo, content, author, message)
		if err != nil {
			return err
		}
		created, err := repo.CommitObject(hash)
		if err != nil {
			return fmt.Errorf("load commit %s: %w", hash, err)
		}
		info = commitInfo(created)
		return nil
	})
	return info, err
}

// GetHeadContent loads the newest revision.
func (s *Service) GetHeadContent(documentID string) (Content, store.CommitInfo, error) {
	return s.revision(documentID, headCommit)
}

// GetContentByHash loads the revision at hash, which may be abbreviated.
func (s *Service) GetContentByHash(documentID, hash string) (Content, store.CommitInfo, error) {
	return s.revision(documentID, func(repo *git.Repository) (*object.Commit, error) {
		resolved, err := resolveHash(repo, hash)
		if err != nil {
			return nil, err
		}
		c, err := repo.CommitObject(resolved)
		if err != nil {
			return nil, fmt.Errorf("load commit %s: %w", hash, err)
		}
		return c, nil
	})
}

// History lists revisions newest first. A limit of zero lists all of them.
func (s *Service) History(documentID string, limit int) ([]store.CommitInfo, error) {
	var items []store.CommitInfo
	err := s.withRepo(documentID, func(repo *git.Repository) error {
		head, err := headCommit(repo)
		if err != nil {
			return err
		}
		iter, err := repo.Log(&git.LogOptions{From: head.Hash})
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		defer iter.Close()

		items = make([]store.CommitInfo, 0, limit)
		err = iter.ForEach(func(c *object.Commit) error {
			items = append(items, commitInfo(c))
			if limit > 0 && len(items) >= limit {
				return io.EOF
			}
			return nil
		})
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("walk log: %w", err)
		}
		return nil
	})
	return items, err
}

func (s *Service) revision(documentID string, pick func(*git.Repository) (*object.Commit, error)) (Content, store.CommitInfo, error) {
	var (
		content Content
		info    store.CommitInfo
	)
	err := s.withRepo(documentID, func(repo *git.Repository) error {
		c, err := pick(repo)
		if err != nil {
			return err
		}
		if content, err = readRevision(c); err != nil {
			return err
		}
		info = commitInfo(c)
		return nil
	})
	return content, info, err
}

// withRepo opens the repository of documentID while holding its lock.
func (s *Service) withRepo(documentID string, fn func(*git.Repository) error) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return fmt.Errorf("open repo for %s: %w", documentID, err)
	}
	return fn(repo)
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if lock, ok := s.locks[documentID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", mainBranch, err)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return c, nil
}

func writeRevision(repo *git.Repository, content Content, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	snapshot, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode snapshot: %w", err)
	}
	root := worktree.Filesystem.Root()
	for _, f := range []struct {
		name string
		data []byte
	}{
		{markdownFile, []byte(content.Markdown)},
		{snapshotFile, append(snapshot, '\n')},
	} {
		if err := os.WriteFile(filepath.Join(root, f.name), f.data, 0o644); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("write %s: %w", f.name, err)
		}
		if _, err := worktree.Add(f.name); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("stage %s: %w", f.name, err)
		}
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: authorEmail(author),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit revision: %w", err)
	}
	return hash, nil
}

func readRevision(c *object.Commit) (Content, error) {
	snapshot, err := fileAt(c, snapshotFile)
	if err != nil {
		return Content{}, err
	}
	var content Content
	if err := json.Unmarshal(snapshot, &content); err != nil {
		return Content{}, fmt.Errorf("decode snapshot of %s: %w", c.Hash, err)
	}
	md, err := fileAt(c, markdownFile)
	if err != nil {
		return Content{}, err
	}
	content.Markdown = string(md)
	return content, nil
}

func fileAt(c *object.Commit, name string) ([]byte, error) {
	file, err := c.File(name)
	if err != nil {
		return nil, fmt.Errorf("find %s in %s: %w", name, c.Hash, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return []byte(contents), nil
}

// HasChanges reports whether two revisions differ in title or markdown.
// Snapshots are compared after normalising their JSON.
func HasChanges(from, to Content) bool {
	if from.Title != to.Title || from.Markdown != to.Markdown {
		return true
	}
	return !bytes.Equal(canonicalJSON(from.Doc), canonicalJSON(to.Doc))
}

// commitInfo counts added and removed markdown lines for the commit.
func commitInfo(c *object.Commit) store.CommitInfo {
	info := store.CommitInfo{
		Hash:      c.Hash.String()[:7],
		Message:   c.Message,
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
	stats, err := c.Stats()
	if err != nil {
		return info
	}
	for _, stat := range stats {
		if stat.Name == markdownFile {
			info.Added, info.Removed = stat.Addition, stat.Deletion
		}
	}
	return info
}

func authorEmail(author string) string {
	local := make([]rune, 0, len(author))
	for _, r := range author {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			local = append(local, r)
		case r == ' ', r == '-', r == '_':
			local = append(local, '.')
		}
	}
	if len(local) == 0 {
		local = []rune("user")
	}
	return string(local) + "@local.outline.dev"
}

func canonicalJSON(doc json.RawMessage) []byte {
	if len(doc) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return out
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %s: %w", hash, err)
	}
	return *resolved, nil
}
