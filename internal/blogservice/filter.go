package blogservice

import (
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Filter is the listing predicate. It is evaluated with identical semantics
// on the document store (toMongo) and over the cached listing (match):
// Search is a case-insensitive substring match against title or content,
// Category is an exact match and Tags is an all-of match.
type Filter struct {
	Search   string
	Category string
	Tags     []string
}

// Sort orders a listing by one field. Ties are broken by ascending id on
// both the store path and the in-memory path so pages are identical
// regardless of cache state.
type Sort struct {
	Field string
	Desc  bool
}

const (
	SortFieldCreatedAt = "created_at"
	SortFieldTitle     = "title"
	SortFieldViews     = "views"
)

func (f Filter) isZero() bool {
	return f.Search == "" && f.Category == "" && len(f.Tags) == 0
}

func (f Filter) toMongo() bson.D {
	var clauses bson.A

	if f.Search != "" {
		pattern := primitiveRegex(f.Search)
		clauses = append(clauses, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "content", Value: pattern}},
		}}})
	}

	if f.Category != "" {
		clauses = append(clauses, bson.D{{Key: "category", Value: f.Category}})
	}

	if len(f.Tags) > 0 {
		clauses = append(clauses, bson.D{{Key: "tags", Value: bson.D{{Key: "$all", Value: f.Tags}}}})
	}

	if len(clauses) == 0 {
		return bson.D{}
	}

	return bson.D{{Key: "$and", Value: clauses}}
}

func primitiveRegex(search string) bson.D {
	return bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(search)},
		{Key: "$options", Value: "i"},
	}
}

func (f Filter) match(v *BlogView) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(v.Title), needle) && !strings.Contains(strings.ToLower(v.Content), needle) {
			return false
		}
	}

	if f.Category != "" && v.Category != f.Category {
		return false
	}

	for _, tag := range f.Tags {
		if !containsTag(v.Tags, tag) {
			return false
		}
	}

	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s Sort) toMongo() bson.D {
	dir := 1
	if s.Desc {
		dir = -1
	}

	return bson.D{{Key: s.Field, Value: dir}, {Key: "_id", Value: 1}}
}

// sortViews orders views by the sort field, ascending id on ties, matching
// the store-side sort exactly.
func sortViews(views []BlogView, s Sort) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := &views[i], &views[j]

		less, equal := compareViews(a, b, s.Field)
		if equal {
			return a.ID < b.ID
		}
		if s.Desc {
			return !less
		}
		return less
	})
}

func compareViews(a, b *BlogView, field string) (less, equal bool) {
	switch field {
	case SortFieldTitle:
		return a.Title < b.Title, a.Title == b.Title
	case SortFieldViews:
		return a.Views < b.Views, a.Views == b.Views
	default:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
}

// paginate slices a page out of the matched set by offset and limit.
func paginate(views []BlogView, limit, offset int) []BlogView {
	if offset >= len(views) {
		return []BlogView{}
	}

	end := offset + limit
	if end > len(views) {
		end = len(views)
	}

	return views[offset:end]
}
