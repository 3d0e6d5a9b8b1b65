package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medidesk/practice-api/internal/model"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
)

func testContext(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestQueryTime(t *testing.T) {
	c := testContext("/?from=2026-03-02&to=2026-03-02T10:30:00Z&bad=yesterday")

	from, err := QueryTime(c, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *from)

	to, err := QueryTime(c, "to")
	require.NoError(t, err)
	assert.Equal(t, 10, to.Hour())

	missing, err := QueryTime(c, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryTime(c, "bad")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestPagination(t *testing.T) {
	p, err := Pagination(testContext("/?page=0&page_size=100000"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, model.MaxPageSize, p.PageSize)

	_, err = Pagination(testContext("/?page=two"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestQueryUUID(t *testing.T) {
	id, err := QueryUUID(testContext("/?doctor_id=1b4e28ba-2fa1-11d2-883f-0016d3cca427"), "doctor_id")
	require.NoError(t, err)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", id.String())

	_, err = QueryUUID(testContext("/?doctor_id=42"), "doctor_id")
	assert.Error(t, err)
}
