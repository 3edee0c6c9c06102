package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRespondLifecycleErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind   lifecycle.Kind
		status int
	}{
		{lifecycle.KindValidation, http.StatusBadRequest},
		{lifecycle.KindNotFound, http.StatusNotFound},
		{lifecycle.KindForbidden, http.StatusForbidden},
		{lifecycle.KindConflict, http.StatusConflict},
		{lifecycle.KindCapacityExceeded, http.StatusConflict},
		{lifecycle.KindPaymentRequired, http.StatusPaymentRequired},
		{lifecycle.KindRefundFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			c, rec := newTestContext()
			err := respondLifecycleError(c, &lifecycle.Error{Kind: tc.kind, Reason: "because"})
			require.NoError(t, err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "because")
		})
	}
}

func TestRespondLifecycleErrorHidesInternalDetails(t *testing.T) {
	c, rec := newTestContext()
	err := respondLifecycleError(c, errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestPagination(t *testing.T) {
	e := echo.New()

	mk := func(query string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		return e.NewContext(req, httptest.NewRecorder())
	}

	offset, limit := pagination(mk(""))
	assert.Equal(t, 0, offset)
	assert.Equal(t, 20, limit)

	offset, limit = pagination(mk("page=3&limit=10"))
	assert.Equal(t, 20, offset)
	assert.Equal(t, 10, limit)

	_, limit = pagination(mk("limit=1000"))
	assert.Equal(t, 20, limit, "oversized limits fall back to the default")

	offset, _ = pagination(mk("page=-1"))
	assert.Equal(t, 0, offset)
}

func TestPathID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("17")
	id, ok := pathID(c, "id")
	require.True(t, ok)
	assert.Equal(t, uint64(17), id)

	c.SetParamValues("0")
	_, ok = pathID(c, "id")
	assert.False(t, ok)

	c.SetParamValues("abc")
	_, ok = pathID(c, "id")
	assert.False(t, ok)
}
