package keyword

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/models"
)

func titleSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := catalog.NewSnapshot([]models.MovieRecord{
		{Title: "The Godfather", Genres: []string{"Crime", "Drama"}, Rating: 9.2},
		{Title: "The Godfather Part II", Genres: []string{"Crime", "Drama"}, Rating: 9.0},
		{Title: "Spirited Away", Genres: []string{"Animation"}, Rating: 8.6},
		{Title: "Inception", Genres: []string{"Action"}, Rating: 8.8},
	}, "test")
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestTitleIndex_Search(t *testing.T) {
	ctx := context.Background()
	idx, err := NewTitleIndex(ctx, titleSnapshot(t))
	if err != nil {
		t.Fatalf("NewTitleIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	if n, _ := idx.DocCount(); n != 4 {
		t.Errorf("DocCount = %d, want 4", n)
	}

	hits, err := idx.Search(ctx, "godfather", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) < 2 {
		t.Fatalf("expected both Godfather titles, got %v", hits)
	}
	if hits[0].Row != 0 && hits[0].Row != 1 {
		t.Errorf("first hit row = %d", hits[0].Row)
	}
}

func TestTitleIndex_FuzzyAndPrefix(t *testing.T) {
	ctx := context.Background()
	idx, err := NewTitleIndex(ctx, titleSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = idx.Close()
	}()

	hits, err := idx.Search(ctx, "incepton", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].Row != 3 {
		t.Errorf("fuzzy search should find Inception, got %v", hits)
	}

	hits, err = idx.Search(ctx, "spiri", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].Row != 2 {
		t.Errorf("prefix search should find Spirited Away, got %v", hits)
	}
}

func TestTitleIndex_EmptyQueryAndCorpus(t *testing.T) {
	ctx := context.Background()
	idx, err := NewTitleIndex(ctx, titleSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = idx.Close()
	}()
	if hits, err := idx.Search(ctx, "   ", 5); err != nil || len(hits) != 0 {
		t.Errorf("blank query: %v, %v", hits, err)
	}

	empty, _ := catalog.NewSnapshot(nil, "")
	eidx, err := NewTitleIndex(ctx, empty)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = eidx.Close()
	}()
	if hits, err := eidx.Search(ctx, "anything", 5); err != nil || len(hits) != 0 {
		t.Errorf("empty corpus: %v, %v", hits, err)
	}
}

func TestTitleIndex_CancelledBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTitleIndex(ctx, titleSnapshot(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
