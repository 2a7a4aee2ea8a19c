package blogservice

import (
	"regexp"

	"github.com/almuhsiny/blogapi/internal/common"
)

var (
	TitleRX = regexp.MustCompile("^[a-zA-Z0-9 ]+$")
)

func validateTitle(v *common.Validator, title string) {
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 3, 100), "title", "must be between 3 and 100 characters long")
	v.Check(TitleRX.MatchString(title), "title", "must only contain letters, numbers, and spaces")
}

func validateCategory(v *common.Validator, category string) {
	v.Check(category != "", "category", "must be provided")
	v.Check(v.CheckStringLength(category, 2, 50), "category", "must be between 2 and 50 characters long")
}

func validateTags(v *common.Validator, tags []string) {
	v.Check(len(tags) <= 10, "tags", "must not contain more than 10 tags")
	v.Check(common.CheckUnique(tags), "tags", "must not contain duplicate values")
	for _, tag := range tags {
		v.Check(tag != "", "tags", "must not contain empty values")
	}
}

func validateContent(v *common.Validator, content string) {
	v.Check(content != "", "content", "must be provided")
	v.Check(len(content) <= 100_000, "content", "must not be more than 100000 bytes long")
}

func validateCommentContent(v *common.Validator, content string) {
	v.Check(content != "", "content", "must be provided")
	v.Check(len(content) <= 2_000, "content", "must not be more than 2000 bytes long")
}

func validateSort(v *common.Validator, s Sort) {
	v.Check(common.CheckPermitted(s.Field, SortFieldCreatedAt, SortFieldTitle, SortFieldViews), "sort", "is not a permitted sort field")
}

func validatePage(v *common.Validator, limit, offset int) {
	v.Check(limit > 0, "limit", "must be greater than zero")
	v.Check(limit <= 100, "limit", "must not be greater than 100")
	v.Check(offset >= 0, "offset", "must not be negative")
}
