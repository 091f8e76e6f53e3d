package ratelimit_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"landledger/internal/ratelimit"
	"landledger/internal/ratelimit/mocks"
	"landledger/pkg/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
}

func TestByClientIP(t *testing.T) {
	t.Run("limits per address", func(t *testing.T) {
		mw := ratelimit.NewMiddleware(ratelimit.NewLimiter(nil), 2, time.Minute)
		h := mw.ByClientIP("otp")(okHandler())

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/auth/otp/send", nil)
			req.RemoteAddr = addr
			return testutil.DoRequest(h, req)
		}

		assert.Equal(t, http.StatusAccepted, send("10.0.0.1:5000").Code)
		rr := send("10.0.0.1:5001")
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

		rr = send("10.0.0.1:5002")
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "too_many_attempts")
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))

		assert.Equal(t, http.StatusAccepted, send("10.0.0.2:5000").Code)
	})

	t.Run("limiter errors let the request through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		store.EXPECT().Allow(gomock.Any(), gomock.Any(), 2, time.Minute).Return(nil, errors.New("boom"))

		mw := ratelimit.NewMiddleware(store, 2, time.Minute)
		rr := testutil.DoRequest(mw.ByClientIP("otp")(okHandler()), httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})
}
