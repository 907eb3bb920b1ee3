package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	cases := map[string]float64{
		"5-S":    5,
		"120-M":  2,
		"3600-H": 1,
		"0-D":    0,
	}
	for limit, want := range cases {
		r, err := ParseLimit(limit)
		require.NoError(t, err, limit)
		assert.InDelta(t, want, r.Rate, 1e-9, limit)
	}

	for _, bad := range []string{"", "5", "x-S", "5-W", "5-S-1"} {
		_, err := ParseLimit(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckRate_MemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := NewStore(nil, "test")
	require.NoError(t, err)

	check := func() (bool, int64) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/v1/readings", nil)
		ctx, err := CheckRate(c, store, "1.2.3.4", "2-M")
		require.NoError(t, err)
		return ctx.Reached, ctx.Remaining
	}

	reached, remaining := check()
	assert.False(t, reached)
	assert.Equal(t, int64(1), remaining)

	reached, _ = check()
	assert.False(t, reached)

	reached, remaining = check()
	assert.True(t, reached)
	assert.Equal(t, int64(0), remaining)
}

func TestCheckRate_OncePerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := NewStore(nil, "test")
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/stats", nil)

	first, err := CheckRate(c, store, "k", "10-M")
	require.NoError(t, err)
	// 同一个请求第二次只查看不计数
	second, err := CheckRate(c, store, "k", "10-M")
	require.NoError(t, err)
	assert.Equal(t, first.Remaining, second.Remaining)
}

func TestRouteToKeyString(t *testing.T) {
	assert.Equal(t, "-v1-readings-_id", routeToKeyString("/v1/readings/:id"))
}
