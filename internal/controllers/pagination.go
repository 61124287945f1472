package controllers

import "sync"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Pagination holds the page and limit that list queries are keyed by.
type Pagination struct {
	mu           sync.Mutex
	page         int
	limit        int
	initialPage  int
	initialLimit int
}

func NewPagination(page, limit int) *Pagination {
	if page < 1 {
		page = DefaultPage
	}

	if limit < 1 {
		limit = DefaultLimit
	}

	return &Pagination{page: page, limit: limit, initialPage: page, initialLimit: limit}
}

func (p *Pagination) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.page
}

func (p *Pagination) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.limit
}

// GoToPage moves to page n; values below 1 land on page 1.
func (p *Pagination) GoToPage(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = max(1, n)
}

func (p *Pagination) NextPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page++
}

func (p *Pagination) PreviousPage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = max(1, p.page-1)
}

// SetPageSize changes the limit and goes back to page 1.
func (p *Pagination) SetPageSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 1 {
		n = DefaultLimit
	}

	p.limit = n
	p.page = 1
}

func (p *Pagination) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = p.initialPage
	p.limit = p.initialLimit
}
