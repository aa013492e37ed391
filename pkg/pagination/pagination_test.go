package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	p := paramsFor(t, "")
	require.Equal(t, DefaultPage, p.Page)
	require.Equal(t, DefaultLimit, p.Limit)
	require.Zero(t, p.Offset)

	p = paramsFor(t, "page=3&limit=10")
	require.Equal(t, 3, p.Page)
	require.Equal(t, 10, p.Limit)
	require.Equal(t, 20, p.Offset)

	p = paramsFor(t, "page=-1&limit=9999")
	require.Equal(t, DefaultPage, p.Page)
	require.Equal(t, MaxLimit, p.Limit)
}

func TestTotalPages(t *testing.T) {
	p := Params{Limit: 20}
	require.Equal(t, 0, p.TotalPages(0))
	require.Equal(t, 1, p.TotalPages(1))
	require.Equal(t, 1, p.TotalPages(20))
	require.Equal(t, 2, p.TotalPages(21))
	require.Equal(t, 5, p.TotalPages(100))
}
