package repositories

import (
	"context"
	"testing"
	"time"

	"tarotshare/app/models/reading"
	"tarotshare/pkg/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var baseTime = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T, now *time.Time) *ReadingRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&reading.Reading{}))

	return NewReadingRepository(db, "", WithClock(func() time.Time { return *now }))
}

func newReading(id string, createdAt time.Time, public bool) *reading.Reading {
	return &reading.Reading{
		ID:             id,
		SiteName:       "Ask Sian",
		ReadingType:    reading.TypeQuestion,
		Question:       "Should I move abroad?",
		SpreadName:     "Three Card",
		Cards:          reading.Cards{{Name: "The World", Number: 21, Position: "Outcome"}},
		Interpretation: "<p>Completion</p>",
		PersonalInfo:   map[string]interface{}{"name": "Sian", "starsign": "Leo"},
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(30 * 24 * time.Hour),
		IsPublic:       public,
	}
}

func TestReadingRepository_InsertSelect(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()
	assert.True(t, repo.Configured())

	r := newReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", now, true)
	require.NoError(t, repo.Insert(ctx, r))

	got, err := repo.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.Cards, got.Cards)
	assert.Equal(t, r.Question, got.Question)
	assert.Equal(t, "Sian", got.UserName())
	assert.True(t, got.IsPublic)

	got, err = repo.SelectByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Insert(ctx, r)
	require.Error(t, err)
	assert.Equal(t, remote.ClassConflict, remote.ClassOf(err))
}

func TestReadingRepository_PrivateIsHidden(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()

	r := newReading("7c9e6679-7425-40de-944b-e07fc1f90ae7", now, false)
	require.NoError(t, repo.Insert(ctx, r))

	got, err := repo.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	v, err := repo.Probe(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, v.IsPublic)
	assert.False(t, *v.IsPublic)

	v, err = repo.Probe(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestReadingRepository_InvalidReading(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)

	r := newReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", now, true)
	r.Cards = nil
	err := repo.Insert(context.Background(), r)
	require.Error(t, err)
	assert.Equal(t, remote.ClassSchema, remote.ClassOf(err))
	assert.ErrorIs(t, err, reading.ErrInvalid)
}

func TestReadingRepository_UpdateViewCount(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()

	r := newReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", now, true)
	require.NoError(t, repo.Insert(ctx, r))

	ok, err := repo.UpdateViewCount(ctx, r.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ViewCount)

	ok, err = repo.UpdateViewCount(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadingRepository_SweepExpired(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newReading("old", now.Add(-31*24*time.Hour), true)))
	require.NoError(t, repo.Insert(ctx, newReading("fresh", now, true)))

	n, err := repo.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := repo.SelectByID(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestReadingRepository_Stats(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()

	today := newReading("today", now.Add(-time.Hour), true)
	today.ViewCount = 3
	require.NoError(t, repo.Insert(ctx, today))
	require.NoError(t, repo.Insert(ctx, newReading("this-week", now.Add(-3*24*time.Hour), true)))
	require.NoError(t, repo.Insert(ctx, newReading("this-month", now.Add(-20*24*time.Hour), false)))
	require.NoError(t, repo.Insert(ctx, newReading("expired", now.Add(-35*24*time.Hour), true)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalReadings)
	assert.Equal(t, int64(3), stats.ActiveReadings)
	assert.Equal(t, int64(1), stats.ExpiredReadings)
	assert.Equal(t, int64(3), stats.TotalViews)
	assert.Equal(t, int64(1), stats.ReadingsToday)
	assert.Equal(t, int64(2), stats.ReadingsThisWeek)
	assert.Equal(t, int64(3), stats.ReadingsThisMonth)
}

func TestReadingRepository_Clear(t *testing.T) {
	now := baseTime
	repo := newTestRepository(t, &now)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newReading("a", now, true)))
	require.NoError(t, repo.Insert(ctx, newReading("b", now, true)))

	n, err := repo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalReadings)
}
