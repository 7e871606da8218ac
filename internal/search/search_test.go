package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headercal/headercal-server/internal/domain"
	"github.com/headercal/headercal-server/internal/store"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) (*SearchIndex, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "search-test-*")
	require.NoError(t, err)

	index, err := NewSearchIndex(Options{
		DataPath: tmpDir,
		Logger:   nil,
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = index.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return index, cleanup
}

func label(id, creator uint32, title, start, end string) *domain.RangeLabel {
	return &domain.RangeLabel{
		ID:            id,
		CreatorUserID: creator,
		Color:         domain.Color{R: 0x33, G: 0x66, B: 0x99},
		Title:         title,
		RangeStart:    start,
		RangeEnd:      end,
	}
}

func TestNewSearchIndex(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexLabel(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, index.IndexLabel(ctx, label(7, 1, "Team offsite", "2024-05-01T09:00:00Z", "2024-05-03T17:00:00Z")))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Reindexing the same label replaces its document.
	require.NoError(t, index.IndexLabel(ctx, label(7, 1, "Team retreat", "2024-05-01T09:00:00Z", "2024-05-03T17:00:00Z")))
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	ids, err := index.SearchLabels(ctx, "retreat", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, ids)

	ids, err = index.SearchLabels(ctx, "offsite", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchIndex_DeleteLabel(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, index.IndexLabel(ctx, label(3, 1, "Dentist", "2024-05-01T09:00:00Z", "2024-05-01T10:00:00Z")))
	require.NoError(t, index.DeleteLabel(ctx, 3))
	require.NoError(t, index.DeleteLabel(ctx, 99))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_SearchLabels(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	ctx := context.Background()

	docs := []*LabelDocument{
		LabelToDocument(label(1, 1, "Café meetup", "2024-05-01T09:00:00Z", "2024-05-01T10:00:00Z")),
		LabelToDocument(label(2, 1, "Conference travel", "2024-05-02T09:00:00Z", "2024-05-04T10:00:00Z")),
		LabelToDocument(label(3, 2, "Vacation", "2024-06-01T00:00:00Z", "2024-06-14T00:00:00Z")),
	}
	require.NoError(t, index.IndexDocuments(docs))

	tests := []struct {
		name  string
		query string
		want  []uint32
	}{
		{name: "exact word", query: "vacation", want: []uint32{3}},
		{name: "accent folded", query: "cafe", want: []uint32{1}},
		{name: "prefix", query: "conf", want: []uint32{2}},
		{name: "typo", query: "vacaton", want: []uint32{3}},
		{name: "no match", query: "birthday", want: []uint32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := index.SearchLabels(ctx, tt.query, 10)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestSearchIndex_Search_Filters(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	ctx := context.Background()

	docs := []*LabelDocument{
		LabelToDocument(label(1, 1, "Standup", "2024-05-01T09:00:00Z", "2024-05-01T09:15:00Z")),
		LabelToDocument(label(2, 2, "Standup", "2024-05-01T09:00:00Z", "2024-05-01T09:15:00Z")),
		LabelToDocument(label(3, 1, "Standup", "2024-06-01T09:00:00Z", "2024-06-01T09:15:00Z")),
	}
	require.NoError(t, index.IndexDocuments(docs))

	t.Run("creator", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{Query: "standup", CreatorUserID: 2, Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Hits, 1)
		assert.Equal(t, uint32(2), result.Hits[0].LabelID)
		assert.Equal(t, uint32(2), result.Hits[0].CreatorUserID)
		assert.Equal(t, "#336699", result.Hits[0].Color)
	})

	t.Run("time window", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{
			Query: "standup",
			From:  docs[2].RangeStart,
			Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, result.Hits, 1)
		assert.Equal(t, uint32(3), result.Hits[0].LabelID)
	})

	t.Run("sorted by start", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{CreatorUserID: 1, SortBy: "start", SortOrder: "desc", Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Hits, 2)
		assert.Equal(t, uint32(3), result.Hits[0].LabelID)
		assert.Equal(t, uint32(1), result.Hits[1].LabelID)
	})
}

func TestSearchIndex_Search_Highlight(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	require.NoError(t, index.IndexDocument(LabelToDocument(label(1, 1, "Quarterly planning", "2024-05-01T09:00:00Z", "2024-05-01T12:00:00Z"))))

	result, err := index.Search(context.Background(), SearchParams{Query: "planning", Highlight: true, Limit: 5})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "Quarterly planning", result.Hits[0].Title)
	assert.Contains(t, result.Hits[0].Highlights["title"], "<mark>planning</mark>")
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	require.NoError(t, index.IndexDocument(LabelToDocument(label(1, 1, "Errand", "2024-05-01T09:00:00Z", "2024-05-01T10:00:00Z"))))

	require.NoError(t, index.Rebuild())

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	index1, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	require.NoError(t, index1.IndexLabel(context.Background(), label(5, 1, "Recital", "2024-05-01T18:00:00Z", "2024-05-01T20:00:00Z")))
	require.NoError(t, index1.Close())

	index2, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer index2.Close()

	ids, err := index2.SearchLabels(context.Background(), "recital", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, ids)
}

func TestNewSearchIndex_MappingVersionChange(t *testing.T) {
	tmpDir := t.TempDir()

	index1, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	require.NoError(t, index1.IndexLabel(context.Background(), label(5, 1, "Recital", "2024-05-01T18:00:00Z", "2024-05-01T20:00:00Z")))
	require.NoError(t, index1.Close())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "labels.version"), []byte("0"), 0644))

	index2, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer index2.Close()

	count, err := index2.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Reindex(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	ctx := context.Background()

	st, err := store.New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer st.Close()

	err = st.Update(ctx, func(tx store.Tx) error {
		for i := 0; i < 3; i++ {
			l := &domain.RangeLabel{
				CreatorUserID: 1,
				Title:         fmt.Sprintf("Sprint %d review", i+1),
				RangeStart:    "2024-05-01T09:00:00Z",
				RangeEnd:      "2024-05-01T10:00:00Z",
			}
			if err := tx.InsertLabel(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	// A stale document for a label the store no longer has.
	require.NoError(t, index.IndexLabel(ctx, label(500, 1, "Sprint gone", "2024-05-01T09:00:00Z", "2024-05-01T10:00:00Z")))

	n, err := index.Reindex(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, err := index.SearchLabels(ctx, "sprint", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.NotContains(t, ids, uint32(500))

	// Counts agree now, so nothing is rebuilt.
	require.NoError(t, index.EnsureSynced(ctx, st))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestLabelToDocument(t *testing.T) {
	doc := LabelToDocument(label(42, 9, "Ölfest", "2024-05-01T00:00:00Z", "2024-05-02T00:00:00Z"))

	assert.Equal(t, "42", doc.ID)
	assert.Equal(t, "Ölfest", doc.Title)
	assert.Equal(t, "olfest", doc.TitleFolded)
	assert.Equal(t, uint32(9), doc.CreatorUserID)
	assert.Equal(t, "#336699", doc.Color)
	assert.Equal(t, int64(1714521600000), doc.RangeStart)
	assert.Equal(t, int64(1714608000000), doc.RangeEnd)

	bad := LabelToDocument(&domain.RangeLabel{ID: 1, Title: "x", RangeStart: "nope"})
	assert.Zero(t, bad.RangeStart)
	m := bad.ToMap()
	_, ok := m["range_start"]
	assert.False(t, ok)

	id, err := ParseDocID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)
}

func TestSearchParams_Defaults(t *testing.T) {
	params := DefaultSearchParams()
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, "relevance", params.SortBy)
	assert.False(t, params.Highlight)
}
