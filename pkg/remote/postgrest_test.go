package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tarotshare/app/models/reading"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST 只实现用到的几种请求
type fakePostgREST struct {
	mu       sync.Mutex
	rows     map[string]*reading.Reading
	headers  http.Header
	failWith *postgrestError
	status   int
	delay    time.Duration
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{rows: make(map[string]*reading.Reading)}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headers = r.Header.Clone()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failWith != nil {
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(f.failWith)
		return
	}

	q := r.URL.Query()
	id := strings.TrimPrefix(q.Get("id"), "eq.")

	switch {
	case r.URL.Path == "/rest/v1/readings" && r.Method == http.MethodPost:
		var row reading.Reading
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := f.rows[row.ID]; ok {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(postgrestError{Code: "23505", Message: "duplicate key value violates unique constraint"})
			return
		}
		f.rows[row.ID] = &row
		w.WriteHeader(http.StatusCreated)

	case r.URL.Path == "/rest/v1/readings" && r.Method == http.MethodGet:
		rows := []interface{}{}
		row, ok := f.rows[id]
		if ok && q.Get("is_public") == "eq.true" && !row.IsPublic {
			ok = false
		}
		if ok {
			if strings.HasPrefix(q.Get("select"), "id,") {
				rows = append(rows, map[string]interface{}{"id": row.ID, "is_public": row.IsPublic, "expires_at": row.ExpiresAt, "site_name": row.SiteName})
			} else {
				rows = append(rows, row)
			}
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/readings" && r.Method == http.MethodPatch:
		var patch struct {
			ViewCount int64 `json:"view_count"`
		}
		_ = json.NewDecoder(r.Body).Decode(&patch)
		rows := []map[string]string{}
		if row, ok := f.rows[id]; ok {
			row.ViewCount = patch.ViewCount
			rows = append(rows, map[string]string{"id": id})
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/rpc/cleanup_expired_readings":
		removed := 0
		for k, row := range f.rows {
			if row.IsExpiredAt(time.Now()) {
				delete(f.rows, k)
				removed++
			}
		}
		_ = json.NewEncoder(w).Encode(removed)

	case r.URL.Path == "/rest/v1/rpc/get_reading_stats":
		_ = json.NewEncoder(w).Encode([]reading.Stats{{TotalReadings: int64(len(f.rows)), ActiveReadings: int64(len(f.rows))}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestReading(id string, public bool) *reading.Reading {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &reading.Reading{
		ID:             id,
		SiteName:       "Ask Sian",
		ReadingType:    reading.TypeGeneral,
		SpreadName:     "Single Card",
		Cards:          reading.Cards{{Name: "The Fool", Number: 0}},
		Interpretation: "New beginnings",
		PersonalInfo:   map[string]interface{}{"name": "Sian"},
		CreatedAt:      now,
		ExpiresAt:      now.Add(30 * 24 * time.Hour),
		IsPublic:       public,
	}
}

func setup(t *testing.T) (*fakePostgREST, *PostgREST) {
	t.Helper()
	fake := newFakePostgREST()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p := NewPostgREST(PostgRESTConfig{URL: srv.URL, AnonKey: "test-key", Timeout: time.Second})
	require.True(t, p.Configured())
	return fake, p
}

func TestPostgREST_Configured(t *testing.T) {
	cases := []struct {
		name string
		url  string
		key  string
		want bool
	}{
		{"empty", "", "", false},
		{"placeholder url", "https://your-project-id.supabase.co", "real-key", false},
		{"placeholder key", "https://abc.supabase.co", "your-anon-key-here", false},
		{"bad scheme", "ftp://abc.supabase.co", "real-key", false},
		{"no host", "https://", "real-key", false},
		{"valid", "https://abc.supabase.co/", "real-key", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewPostgREST(PostgRESTConfig{URL: c.url, AnonKey: c.key})
			assert.Equal(t, c.want, p.Configured())
		})
	}

	p := NewPostgREST(PostgRESTConfig{})
	_, err := p.SelectByID(context.Background(), "x")
	assert.Equal(t, ClassUnavailable, ClassOf(err))
}

func TestPostgREST_InsertAndSelect(t *testing.T) {
	fake, p := setup(t)
	ctx := context.Background()

	r := newTestReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", true)
	require.NoError(t, p.Insert(ctx, r))
	assert.Equal(t, "test-key", fake.headers.Get("apikey"))
	assert.Equal(t, "Bearer test-key", fake.headers.Get("Authorization"))
	assert.Equal(t, "return=minimal", fake.headers.Get("Prefer"))

	got, err := p.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.Cards, got.Cards)
	assert.Equal(t, "Sian", got.UserName())
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

	got, err = p.SelectByID(ctx, "00000000-0000-4000-8000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = p.Insert(ctx, r)
	require.Error(t, err)
	assert.Equal(t, ClassConflict, ClassOf(err))
	assert.Equal(t, "23505", CodeOf(err))
}

func TestPostgREST_SelectHidesPrivate(t *testing.T) {
	_, p := setup(t)
	ctx := context.Background()

	r := newTestReading("7c9e6679-7425-40de-944b-e07fc1f90ae7", false)
	require.NoError(t, p.Insert(ctx, r))

	got, err := p.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	v, err := p.Probe(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.NotNil(t, v.IsPublic)
	assert.False(t, *v.IsPublic)
	assert.Equal(t, "Ask Sian", v.SiteName)
}

func TestPostgREST_UpdateViewCount(t *testing.T) {
	fake, p := setup(t)
	ctx := context.Background()

	r := newTestReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", true)
	require.NoError(t, p.Insert(ctx, r))

	ok, err := p.UpdateViewCount(ctx, r.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), fake.rows[r.ID].ViewCount)

	ok, err = p.UpdateViewCount(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgREST_RPC(t *testing.T) {
	fake, p := setup(t)
	ctx := context.Background()

	expired := newTestReading("expired", true)
	expired.CreatedAt = time.Now().Add(-40 * 24 * time.Hour)
	expired.ExpiresAt = time.Now().Add(-10 * 24 * time.Hour)
	fake.rows[expired.ID] = expired
	fake.rows["fresh"] = newTestReading("fresh", true)

	n, err := p.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalReadings)
}

func TestPostgREST_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   *postgrestError
		want   Class
	}{
		{"rls", http.StatusForbidden, &postgrestError{Code: "42501", Message: "new row violates row-level security policy"}, ClassPermission},
		{"jwt", http.StatusUnauthorized, &postgrestError{Code: "PGRST301", Message: "JWT expired"}, ClassAuth},
		{"missing table", http.StatusNotFound, &postgrestError{Code: "42P01", Message: "relation does not exist"}, ClassSchema},
		{"missing column", http.StatusBadRequest, &postgrestError{Code: "PGRST204", Message: "column not found"}, ClassSchema},
		{"statement timeout", http.StatusInternalServerError, &postgrestError{Code: "57014", Message: "canceling statement"}, ClassTimeout},
		{"bare 503", http.StatusServiceUnavailable, &postgrestError{}, ClassServer},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fake, p := setup(t)
			fake.status = c.status
			fake.failWith = c.body

			err := p.Insert(context.Background(), newTestReading("x", true))
			require.Error(t, err)
			assert.Equal(t, c.want, ClassOf(err))

			var remoteErr *Error
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, c.status, remoteErr.Status)
			assert.Equal(t, "insert", remoteErr.Op)
		})
	}
}

func TestPostgREST_SelectNotFoundCodeIsNil(t *testing.T) {
	fake, p := setup(t)
	fake.status = http.StatusNotAcceptable
	fake.failWith = &postgrestError{Code: "PGRST116", Message: "JSON object requested, multiple (or no) rows returned"}

	got, err := p.SelectByID(context.Background(), "3f2504e0-4f89-41d3-9a0c-0305e82c3301")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgREST_Timeout(t *testing.T) {
	fake, p := setup(t)
	fake.delay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.SelectByID(ctx, "3f2504e0-4f89-41d3-9a0c-0305e82c3301")
	require.Error(t, err)
	assert.Equal(t, ClassTimeout, ClassOf(err))
}

func TestClassifyCode(t *testing.T) {
	assert.Equal(t, ClassNotFound, ClassifyCode("PGRST116"))
	assert.Equal(t, ClassPermission, ClassifyCode("42501"))
	assert.Equal(t, ClassAuth, ClassifyCode("PGRST303"))
	assert.Equal(t, ClassSchema, ClassifyCode("22P02"))
	assert.Equal(t, ClassConflict, ClassifyCode("23505"))
	assert.Equal(t, ClassNetwork, ClassifyCode("08006"))
	assert.Equal(t, ClassUnknown, ClassifyCode("XX000"))
}

func TestDeferred(t *testing.T) {
	d := NewDeferred()
	ctx := context.Background()

	assert.False(t, d.Configured())
	_, err := d.SelectByID(ctx, "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	v, err := d.Probe(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, p := setup(t)
	d.Resolve(p)
	assert.True(t, d.Configured())

	r := newTestReading("3f2504e0-4f89-41d3-9a0c-0305e82c3301", true)
	require.NoError(t, d.Insert(ctx, r))
	got, err := d.SelectByID(ctx, r.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = d.Clear(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
