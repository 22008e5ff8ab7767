package models

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps the request to a valid first page and page size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
	PerPage     int `json:"perPage"`
	Total       int `json:"total"`
}

// NewPage builds the page envelope. Data is never nil so it encodes as [].
func NewPage[T any](data []T, req PageRequest, total int) Page[T] {
	req = req.Normalize()
	if data == nil {
		data = []T{}
	}
	lastPage := (total + req.PerPage - 1) / req.PerPage
	if lastPage < 1 {
		lastPage = 1
	}
	return Page[T]{
		Data:        data,
		CurrentPage: req.Page,
		LastPage:    lastPage,
		PerPage:     req.PerPage,
		Total:       total,
	}
}
