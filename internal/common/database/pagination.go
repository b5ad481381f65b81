package database

// PaginatedResult represents paginated response
type PaginatedResult struct {
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int64       `json:"total_pages"`
	Data       interface{} `json:"data"`
}

func (p *PaginatedResult) Calculate() {
	if p.PageSize > 0 {
		p.TotalPages = (p.Total + int64(p.PageSize) - 1) / int64(p.PageSize)
	}
}

// Offset returns the row offset for a 1-based page.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
