package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// VisitStore is the persistence surface for visit analytics.
type VisitStore interface {
	InsertVisit(ctx context.Context, visit *models.Visit) error
	UpsertVisitSummary(ctx context.Context, date time.Time, loggedIn, mobile bool) error
	RefreshUniqueVisitors(ctx context.Context, date time.Time) error
	GetVisitSummary(ctx context.Context, date time.Time) (*models.VisitSummary, error)
}

// VisitService records page views and maintains the daily rollup.
type VisitService struct {
	store  VisitStore
	logger *zap.Logger
}

// NewVisitService creates a visit service.
func NewVisitService(st VisitStore) *VisitService {
	return &VisitService{store: st, logger: util.GetLogger()}
}

// Record writes one page view and bumps the rollup for its day. Analytics
// are best-effort: callers treat any error as droppable.
func (s *VisitService) Record(ctx context.Context, visit *models.Visit) error {
	if visit.UserAgent.Valid {
		browser, os, mobile := ParseUserAgent(visit.UserAgent.String)
		visit.Browser = nullableString(browser)
		visit.OS = nullableString(os)
		visit.IsMobile = mobile
	}

	if err := s.store.InsertVisit(ctx, visit); err != nil {
		util.VisitRecordFailures.Inc()
		return err
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.store.UpsertVisitSummary(ctx, day, visit.UserID.Valid, visit.IsMobile); err != nil {
		util.VisitRecordFailures.Inc()
		return err
	}
	if err := s.store.RefreshUniqueVisitors(ctx, day); err != nil {
		s.logger.Warn("Failed to refresh unique visitor count", zap.Error(err))
	}

	util.VisitsRecordedTotal.Inc()
	return nil
}

// Summary retrieves the rollup for a day.
func (s *VisitService) Summary(ctx context.Context, date time.Time) (*models.VisitSummary, error) {
	return s.store.GetVisitSummary(ctx, date.UTC().Truncate(24*time.Hour))
}

// ParseUserAgent extracts a coarse browser, OS and mobile flag from a
// User-Agent header. Order matters: Edge and Opera advertise Chrome,
// Chrome advertises Safari, Android advertises Linux.
func ParseUserAgent(ua string) (browser, os string, mobile bool) {
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		browser = "Opera"
	case strings.Contains(lower, "chrome"):
		browser = "Chrome"
	case strings.Contains(lower, "firefox"):
		browser = "Firefox"
	case strings.Contains(lower, "safari"):
		browser = "Safari"
	}

	switch {
	case strings.Contains(lower, "android"):
		os = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		os = "iOS"
	case strings.Contains(lower, "windows"):
		os = "Windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		os = "macOS"
	case strings.Contains(lower, "linux"):
		os = "Linux"
	}

	mobile = strings.Contains(lower, "mobile") ||
		strings.Contains(lower, "android") ||
		strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "ipad")
	return browser, os, mobile
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
