package mirror

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tarotshare/app/models/reading"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
}

func sample(id string, createdAt time.Time) *reading.Reading {
	return &reading.Reading{
		ID:          id,
		SiteName:    "Ask Sian",
		ReadingType: reading.TypeQuestion,
		Question:    "Will I get the job?",
		SpreadName:  "Three Card",
		Cards: reading.Cards{
			{Name: "The Fool", Number: 0, Position: "Past"},
			{Name: "The Tower", Number: 16, Reversed: true, Position: "Present"},
			{Name: "The Star", Number: 17, Position: "Future"},
		},
		Interpretation: "<p>A <strong>new</strong> beginning</p>",
		PersonalInfo:   map[string]interface{}{"name": "Sian", "starsign": "Leo"},
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(30 * 24 * time.Hour),
		IsPublic:       true,
	}
}

func TestMirror_PutGetRoundTrip(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))

	r := sample("3f2504e0-4f89-41d3-9a0c-0305e82c3301", clock.now)
	require.NoError(t, m.Put(r))

	got := m.Get(r.ID)
	require.NotNil(t, got)
	assert.Equal(t, r.Cards, got.Cards)
	assert.Equal(t, r.Interpretation, got.Interpretation)
	assert.Equal(t, r.Question, got.Question)
	assert.Equal(t, "Sian", got.UserName())
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

	assert.Nil(t, m.Get("missing"))
}

func TestMirror_GetExpired(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))

	r := sample("reading_1699999999_abc123", clock.now)
	require.NoError(t, m.Put(r))

	clock.Advance(30*24*time.Hour - time.Second)
	assert.NotNil(t, m.Get(r.ID))

	clock.Advance(time.Second)
	assert.Nil(t, m.Get(r.ID))
	assert.False(t, m.IncrementView(r.ID))
}

func TestMirror_IncrementView(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))

	r := sample("reading_1699999999_abc123", clock.now)
	require.NoError(t, m.Put(r))

	for i := 0; i < 3; i++ {
		assert.True(t, m.IncrementView(r.ID))
	}
	assert.Equal(t, int64(3), m.Get(r.ID).ViewCount)
	assert.False(t, m.IncrementView("missing"))
}

func TestMirror_SweepExpiredIsIdempotent(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))

	require.NoError(t, m.Put(sample("old-1", clock.now.Add(-40*24*time.Hour))))
	require.NoError(t, m.Put(sample("old-2", clock.now.Add(-31*24*time.Hour))))
	require.NoError(t, m.Put(sample("fresh", clock.now)))

	n, err := m.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Len(t, m.All(), 1)
}

func TestMirror_CapacityDropsOldestFirst(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now), WithCapacity(3))

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Put(sample(fmt.Sprintf("r%d", i), clock.now.Add(time.Duration(i)*time.Minute))))
	}

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, "r4", all[0].ID)
	assert.Equal(t, "r3", all[1].ID)
	assert.Equal(t, "r2", all[2].ID)
	assert.Nil(t, m.Get("r0"))
}

func TestMirror_QuotaExceeded(t *testing.T) {
	clock := newClock()
	m := New(NewMemoryKV(64), "test_readings", WithClock(clock.Now))

	err := m.Put(sample("reading_1699999999_abc123", clock.now))
	require.Error(t, err)

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "put", persistErr.Op)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Nil(t, m.Get("reading_1699999999_abc123"))
}

func TestMirror_CorruptDataReadsAsEmpty(t *testing.T) {
	clock := newClock()
	kv := NewMemoryKV(0)
	require.NoError(t, kv.Store("test_readings", []byte("{not json")))
	m := New(kv, "test_readings", WithClock(clock.Now))

	assert.Empty(t, m.All())
	require.NoError(t, m.Put(sample("fresh", clock.now)))
	assert.NotNil(t, m.Get("fresh"))
}

func TestMirror_ExportImportAndClear(t *testing.T) {
	clock := newClock()
	src := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))
	require.NoError(t, src.Put(sample("a", clock.now)))
	require.NoError(t, src.Put(sample("b", clock.now.Add(time.Minute))))

	data, err := src.Export()
	require.NoError(t, err)

	dst := New(NewMemoryKV(0), "test_readings", WithClock(clock.Now))
	require.NoError(t, dst.Put(sample("stale", clock.now)))

	n, err := dst.Import(data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Nil(t, dst.Get("stale"))
	assert.NotNil(t, dst.Get("a"))

	_, err = dst.Import([]byte(`{"x": {"id": "y"}}`))
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, dst.Clear())
	assert.Empty(t, dst.All())
}

func TestGormKV_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存数据库每个连接各自独立，限制为单连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Entry{}))

	kv := NewGormKV(db)

	v, err := kv.Load("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, kv.Store("k", []byte("one")))
	require.NoError(t, kv.Store("k", []byte("two")))
	v, err = kv.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))

	clock := newClock()
	m := New(kv, "test_readings", WithClock(clock.Now))
	require.NoError(t, m.Put(sample("3f2504e0-4f89-41d3-9a0c-0305e82c3301", clock.now)))
	assert.NotNil(t, m.Get("3f2504e0-4f89-41d3-9a0c-0305e82c3301"))

	require.NoError(t, kv.Remove("k"))
	v, err = kv.Load("k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

// flakyKV 下一次 Load 返回错误
type flakyKV struct {
	*MemoryKV
	failLoad bool
}

func (f *flakyKV) Load(key string) ([]byte, error) {
	if f.failLoad {
		f.failLoad = false
		return nil, errors.New("i/o timeout")
	}
	return f.MemoryKV.Load(key)
}

func TestMirror_LoadFailureKeepsExistingReadings(t *testing.T) {
	clock := newClock()
	kv := &flakyKV{MemoryKV: NewMemoryKV(0)}
	m := New(kv, "test_readings", WithClock(clock.Now))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Put(sample(id, clock.now)))
	}

	kv.failLoad = true
	err := m.Put(sample("d", clock.now))
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "put", persistErr.Op)

	for _, id := range []string{"a", "b", "c"} {
		assert.NotNil(t, m.Get(id), id)
	}
	assert.Nil(t, m.Get("d"))
	assert.Len(t, m.All(), 3)

	kv.failLoad = true
	_, err = m.SweepExpired()
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "sweep", persistErr.Op)

	kv.failLoad = true
	assert.False(t, m.IncrementView("a"))
	assert.Equal(t, int64(0), m.Get("a").ViewCount)

	kv.failLoad = true
	_, err = m.Export()
	require.ErrorAs(t, err, &persistErr)

	require.NoError(t, m.Put(sample("d", clock.now)))
	assert.Len(t, m.All(), 4)
}
