package models

import (
	"strconv"

	"gorm.io/gorm"
)

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Number      int   `json:"number"`
	PerPage     int   `json:"per_page"`
	NumPages    int   `json:"num_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// ResolvePage turns a raw page parameter into a valid page number. Anything
// that is not an integer selects the first page; integers out of range
// select the last one.
func ResolvePage(raw string, total int64, perPage int) int {
	last := numPages(total, perPage)
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	if n < 1 || n > last {
		return last
	}
	return n
}

func numPages(total int64, perPage int) int {
	if perPage <= 0 || total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// Paginate counts query, resolves raw against the count and loads the page.
// query must already carry its model, filters and ordering.
func Paginate[T any](query *gorm.DB, raw string, perPage int, preloads ...string) (*Page[T], error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	number := ResolvePage(raw, total, perPage)
	q := query.Session(&gorm.Session{})
	for _, p := range preloads {
		q = q.Preload(p)
	}

	var items []T
	if err := q.Offset((number - 1) * perPage).Limit(perPage).Find(&items).Error; err != nil {
		return nil, err
	}

	pages := numPages(total, perPage)
	return &Page[T]{
		Items:       items,
		Number:      number,
		PerPage:     perPage,
		NumPages:    pages,
		Total:       total,
		HasNext:     number < pages,
		HasPrevious: number > 1,
	}, nil
}
