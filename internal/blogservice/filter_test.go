package blogservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testViews() []BlogView {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	return []BlogView{
		{ID: "aaa", Title: "Go Concurrency", Category: "tech", Tags: []string{"go", "concurrency"}, Content: "channels and goroutines", Views: 10, CreatedAt: base},
		{ID: "bbb", Title: "Cooking Pasta", Category: "food", Tags: []string{"italian"}, Content: "boil water first", Views: 50, CreatedAt: base.Add(time.Hour)},
		{ID: "ccc", Title: "Go Generics", Category: "tech", Tags: []string{"go"}, Content: "type parameters", Views: 10, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "ddd", Title: "Travel Notes", Category: "travel", Tags: []string{"asia", "budget"}, Content: "pack light", Views: 3, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func TestFilterMatch(t *testing.T) {
	views := testViews()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "empty filter matches all", filter: Filter{}, want: []string{"aaa", "bbb", "ccc", "ddd"}},
		{name: "search title case-insensitive", filter: Filter{Search: "go"}, want: []string{"aaa", "ccc"}},
		{name: "search content", filter: Filter{Search: "water"}, want: []string{"bbb"}},
		{name: "category exact", filter: Filter{Category: "tech"}, want: []string{"aaa", "ccc"}},
		{name: "tags all-of", filter: Filter{Tags: []string{"go", "concurrency"}}, want: []string{"aaa"}},
		{name: "tags single", filter: Filter{Tags: []string{"go"}}, want: []string{"aaa", "ccc"}},
		{name: "combined", filter: Filter{Search: "generics", Category: "tech"}, want: []string{"ccc"}},
		{name: "no match", filter: Filter{Category: "tech", Tags: []string{"italian"}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for i := range views {
				if tt.filter.match(&views[i]) {
					got = append(got, views[i].ID)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterSearchIsLiteral(t *testing.T) {
	view := BlogView{ID: "aaa", Title: "plain title", Content: "nothing special"}

	// Regex metacharacters must not act as wildcards on either path.
	f := Filter{Search: ".*"}
	assert.False(t, f.match(&view))

	f = Filter{Search: "plain t"}
	assert.True(t, f.match(&view))
}

func TestSortViews(t *testing.T) {
	views := testViews()

	sortViews(views, Sort{Field: SortFieldViews, Desc: true})
	assert.Equal(t, []string{"bbb", "aaa", "ccc", "ddd"}, viewIDs(views))

	// Equal view counts tie-break by ascending id even when descending.
	sortViews(views, Sort{Field: SortFieldViews})
	assert.Equal(t, []string{"ddd", "aaa", "ccc", "bbb"}, viewIDs(views))

	sortViews(views, Sort{Field: SortFieldTitle})
	assert.Equal(t, []string{"bbb", "aaa", "ccc", "ddd"}, viewIDs(views))

	sortViews(views, Sort{Field: SortFieldCreatedAt, Desc: true})
	assert.Equal(t, []string{"ddd", "ccc", "bbb", "aaa"}, viewIDs(views))
}

func TestPaginatePartition(t *testing.T) {
	views := testViews()
	sortViews(views, Sort{Field: SortFieldCreatedAt})

	// Pages of size 3 over 4 elements partition the set: no duplicates, no
	// omissions.
	seen := []string{}
	for offset := 0; offset < len(views); offset += 3 {
		page := paginate(views, 3, offset)
		seen = append(seen, viewIDs(page)...)
	}

	assert.Equal(t, viewIDs(views), seen)

	assert.Empty(t, paginate(views, 10, 100))
	assert.Len(t, paginate(views, 10, 0), 4)
}

func viewIDs(views []BlogView) []string {
	ids := []string{}
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}
