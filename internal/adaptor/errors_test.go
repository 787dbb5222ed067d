package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: booking 42", usecase.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: slot taken", usecase.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: provider full", usecase.ErrCapacityExceeded), http.StatusConflict},
		{fmt.Errorf("%w: completed -> cancelled", usecase.ErrIllegalTransition), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: date", usecase.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: need 200", usecase.ErrInsufficientBalance), http.StatusBadRequest},
		{fmt.Errorf("%w: bad password", usecase.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("%w: not yours", usecase.ErrForbidden), http.StatusForbidden},
		{errors.New("connection reset by peer"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, zap.NewNop(), tc.err, "test")

			assert.Equal(t, tc.want, rec.Code)

			var body utils.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Status)
			if tc.want == http.StatusInternalServerError {
				// Internal details stay in the log.
				assert.Equal(t, "Internal server error", body.Message)
			} else {
				assert.Equal(t, tc.err.Error(), body.Message)
			}
		})
	}
}

func TestDecodeOptionalAcceptsEmptyBody(t *testing.T) {
	var req request.CancelBookingRequest

	rec := httptest.NewRecorder()
	assert.True(t, decodeOptional(rec, httptest.NewRequest(http.MethodPut, "/", nil), &req))
	assert.Nil(t, req.Reason)

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"reason":"feeling better"}`)
	require.True(t, decodeOptional(rec, httptest.NewRequest(http.MethodPut, "/", body), &req))
	require.NotNil(t, req.Reason)
	assert.Equal(t, "feeling better", *req.Reason)

	rec = httptest.NewRecorder()
	assert.False(t, decodeOptional(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":`)), &req))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaginationFromQueryClampsPerPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/bookings?page=3&per_page=500", nil)
	page := paginationFromQuery(req)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 100, page.PerPage)

	page = paginationFromQuery(httptest.NewRequest(http.MethodGet, "/api/bookings?page=-1", nil))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PerPage)
}
