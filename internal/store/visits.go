package store

import (
	"context"
	"time"

	"storefront/internal/models"
)

// InsertVisit records a single page view.
func (s *Store) InsertVisit(ctx context.Context, visit *models.Visit) error {
	return s.db.GetContext(ctx, &visit.ID, `
		INSERT INTO visits
			(ip_address, user_agent, user_id, page_url, referrer, is_mobile, browser, os)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		visit.IPAddress, visit.UserAgent, visit.UserID, visit.PageURL,
		visit.Referrer, visit.IsMobile, visit.Browser, visit.OS)
}

// UpsertVisitSummary bumps the daily rollup counters for one visit. The
// increments happen in a single statement so concurrent requests never lose
// counts.
func (s *Store) UpsertVisitSummary(ctx context.Context, date time.Time, loggedIn, mobile bool) error {
	logged, anon, mob, desk := 0, 1, 0, 1
	if loggedIn {
		logged, anon = 1, 0
	}
	if mobile {
		mob, desk = 1, 0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_summaries
			(date, total_visits, logged_user_visits, anonymous_visits, mobile_visits, desktop_visits)
		VALUES ($1, 1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			total_visits = visit_summaries.total_visits + 1,
			logged_user_visits = visit_summaries.logged_user_visits + $2,
			anonymous_visits = visit_summaries.anonymous_visits + $3,
			mobile_visits = visit_summaries.mobile_visits + $4,
			desktop_visits = visit_summaries.desktop_visits + $5`,
		date, logged, anon, mob, desk)
	return err
}

// RefreshUniqueVisitors recomputes the distinct-IP count for a day.
func (s *Store) RefreshUniqueVisitors(ctx context.Context, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE visit_summaries
		SET unique_visitors = (
			SELECT COUNT(DISTINCT ip_address) FROM visits
			WHERE created_at >= $1 AND created_at < $1 + INTERVAL '1 day'
		)
		WHERE date = $1`, date)
	return err
}

// GetVisitSummary retrieves the rollup for a day.
func (s *Store) GetVisitSummary(ctx context.Context, date time.Time) (*models.VisitSummary, error) {
	var summary models.VisitSummary
	err := s.db.GetContext(ctx, &summary,
		"SELECT * FROM visit_summaries WHERE date = $1", date)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
