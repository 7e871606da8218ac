package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/headercal/headercal-server/internal/normalize"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	CreatorUserID uint32 // Restrict to one creator (0 = all)
	From          int64  // Labels ending at or after this Unix milli (0 = unbounded)
	To            int64  // Labels starting at or before this Unix milli (0 = unbounded)

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title", "start"
	SortOrder string // "asc", "desc"

	Highlight bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		SortBy:    "relevance",
		SortOrder: "desc",
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	LabelID       uint32            `json:"label_id"`
	Score         float64           `json:"score"`
	Title         string            `json:"title"`
	CreatorUserID uint32            `json:"creator_user_id"`
	Color         string            `json:"color,omitempty"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
	}

	searchRequest.Fields = []string{"title", "creator_user_id", "color"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		labelID, err := ParseDocID(hit.ID)
		if err != nil {
			s.logger.Warn("skipping search hit with malformed id", "id", hit.ID)
			continue
		}
		searchHit := SearchHit{
			LabelID: labelID,
			Score:   hit.Score,
		}

		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if c, ok := hit.Fields["creator_user_id"].(float64); ok {
			searchHit.CreatorUserID = uint32(c)
		}
		if c, ok := hit.Fields["color"].(string); ok {
			searchHit.Color = c
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// SearchLabels returns the ids of labels matching query, best match first.
func (s *SearchIndex) SearchLabels(ctx context.Context, q string, limit int) ([]uint32, error) {
	params := DefaultSearchParams()
	params.Query = q
	if limit > 0 {
		params.Limit = limit
	}

	result, err := s.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.LabelID
	}
	return ids, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Stemmed title match ranks highest. The folded field catches accent
	// and case variants the English analyzer keeps apart.
	if params.Query != "" {
		folded := normalize.SearchKey(params.Query)

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		foldedMatch := bleve.NewMatchQuery(folded)
		foldedMatch.SetField("title_folded")
		foldedMatch.SetBoost(1.5)

		textQueries := []query.Query{titleMatch, foldedMatch}

		// Typo tolerance and autocomplete apply to single words only.
		if !strings.ContainsAny(folded, " \t") {
			fuzzyQuery := bleve.NewFuzzyQuery(folded)
			fuzzyQuery.SetFuzziness(1)
			fuzzyQuery.SetField("title_folded")
			fuzzyQuery.SetBoost(0.8)
			textQueries = append(textQueries, fuzzyQuery)

			if len(folded) >= 2 {
				prefixQuery := bleve.NewPrefixQuery(folded)
				prefixQuery.SetField("title_folded")
				prefixQuery.SetBoost(0.5)
				textQueries = append(textQueries, prefixQuery)
			}
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.CreatorUserID != 0 {
		id := float64(params.CreatorUserID)
		inclusive := true
		creatorQuery := bleve.NewNumericRangeInclusiveQuery(&id, &id, &inclusive, &inclusive)
		creatorQuery.SetField("creator_user_id")
		queries = append(queries, creatorQuery)
	}

	// Overlap with [From, To]: the label ends after From and starts before To.
	if params.From != 0 {
		from := float64(params.From)
		endQuery := bleve.NewNumericRangeQuery(&from, nil)
		endQuery.SetField("range_end")
		queries = append(queries, endQuery)
	}
	if params.To != 0 {
		to := float64(params.To)
		inclusive := true
		startQuery := bleve.NewNumericRangeInclusiveQuery(nil, &to, nil, &inclusive)
		startQuery.SetField("range_start")
		queries = append(queries, startQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title", "_id"})
		} else {
			req.SortBy([]string{"title", "_id"})
		}
	case "start":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-range_start", "_id"})
		} else {
			req.SortBy([]string{"range_start", "_id"})
		}
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}
