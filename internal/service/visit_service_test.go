package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVisitStore struct {
	visits    []*models.Visit
	summaries map[time.Time]*models.VisitSummary
	refreshes int
}

func newFakeVisitStore() *fakeVisitStore {
	return &fakeVisitStore{summaries: map[time.Time]*models.VisitSummary{}}
}

func (f *fakeVisitStore) InsertVisit(_ context.Context, visit *models.Visit) error {
	visit.ID = int64(len(f.visits) + 1)
	f.visits = append(f.visits, visit)
	return nil
}

func (f *fakeVisitStore) UpsertVisitSummary(_ context.Context, date time.Time, loggedIn, mobile bool) error {
	s, ok := f.summaries[date]
	if !ok {
		s = &models.VisitSummary{Date: date}
		f.summaries[date] = s
	}
	s.TotalVisits++
	if loggedIn {
		s.LoggedUserVisits++
	} else {
		s.AnonymousVisits++
	}
	if mobile {
		s.MobileVisits++
	} else {
		s.DesktopVisits++
	}
	return nil
}

func (f *fakeVisitStore) RefreshUniqueVisitors(_ context.Context, _ time.Time) error {
	f.refreshes++
	return nil
}

func (f *fakeVisitStore) GetVisitSummary(_ context.Context, date time.Time) (*models.VisitSummary, error) {
	s, ok := f.summaries[date]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

const (
	androidUA = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		browser string
		os      string
		mobile  bool
	}{
		{"android chrome", androidUA, "Chrome", "Android", true},
		{"windows firefox", desktopUA, "Firefox", "Windows", false},
		{"iphone safari", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", "iOS", true},
		{"mac edge", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0", "Edge", "macOS", false},
		{"empty", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser, os, mobile := ParseUserAgent(tt.ua)
			assert.Equal(t, tt.browser, browser)
			assert.Equal(t, tt.os, os)
			assert.Equal(t, tt.mobile, mobile)
		})
	}
}

func TestRecord_WritesVisitAndRollup(t *testing.T) {
	st := newFakeVisitStore()
	svc := NewVisitService(st)
	ctx := context.Background()

	err := svc.Record(ctx, &models.Visit{
		IPAddress: "203.0.113.9",
		UserAgent: sql.NullString{String: androidUA, Valid: true},
		UserID:    sql.NullInt64{Int64: 11, Valid: true},
		PageURL:   "/api/v1/products/7",
	})
	require.NoError(t, err)

	err = svc.Record(ctx, &models.Visit{
		IPAddress: "203.0.113.9",
		UserAgent: sql.NullString{String: desktopUA, Valid: true},
		PageURL:   "/api/v1/categories",
	})
	require.NoError(t, err)

	require.Len(t, st.visits, 2)
	assert.Equal(t, "Chrome", st.visits[0].Browser.String)
	assert.Equal(t, "Android", st.visits[0].OS.String)
	assert.True(t, st.visits[0].IsMobile)
	assert.False(t, st.visits[1].IsMobile)

	day := time.Now().UTC().Truncate(24 * time.Hour)
	summary, err := svc.Summary(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalVisits)
	assert.Equal(t, 1, summary.LoggedUserVisits)
	assert.Equal(t, 1, summary.AnonymousVisits)
	assert.Equal(t, 1, summary.MobileVisits)
	assert.Equal(t, 1, summary.DesktopVisits)
	assert.Equal(t, 2, st.refreshes)
}
