package audit

import (
	"context"
	"fmt"
	"time"
)

// TimelineFilters narrows the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	TenantID int64
	Page     int
	PageSize int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// TimelineQuery is the repository-level query shape.
type TimelineQuery struct {
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	TenantID int64
	Offset   int
	Limit    int
}

// TimelineRepository provides the read side of the audit log.
type TimelineRepository interface {
	TimelineWindow(ctx context.Context, q TimelineQuery) ([]Entry, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo TimelineRepository
}

// NewService builds the timeline service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches audit entries with paging, newest first. One extra row is
// requested to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.TimelineWindow(ctx, TimelineQuery{
		From:     filters.From,
		To:       filters.To,
		Actor:    filters.Actor,
		Action:   filters.Action,
		TenantID: filters.TenantID,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize + 1,
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
