package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("doc")
	if !strings.HasPrefix(id, "doc_") || len(id) != len("doc_")+32 {
		t.Errorf("NewID(doc) = %q", id)
	}
	if NewID("doc") == id {
		t.Error("NewID returned the same id twice")
	}
	if bare := NewID(""); strings.Contains(bare, "_") || len(bare) != 32 {
		t.Errorf("NewID(\"\") = %q", bare)
	}
}
