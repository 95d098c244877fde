package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestStatusError_Kinds(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusRequestTimeout, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusServiceUnavailable, ErrTransient},
		{http.StatusBadRequest, ErrUpstream},
		{http.StatusNotFound, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := StatusError("CONVERT", tt.status, []byte(`{"message":"x"}`))
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.kind, Classify(err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, ErrTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, ErrTransient, Classify(fmt.Errorf("post: %w", syscall.ECONNRESET)))
	assert.Equal(t, ErrTransient, Classify(timeoutErr{}))
	assert.Equal(t, ErrInternal, Classify(errors.New("boom")))
	assert.Equal(t, ErrParse, Classify(NewKindError(ErrParse, "PARSE", "no json", nil)))

	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, IsAuth(StatusError("LLM", 401, nil)))
	assert.False(t, IsAuth(StatusError("LLM", 500, nil)))
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewKindError(ErrTransient, "LLM_SEND", "send request", cause)
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "socket closed")
}

func TestToStatus(t *testing.T) {
	assert.Nil(t, ToStatus(nil))
	assert.Equal(t, codes.Unauthenticated, status.Code(ToStatus(StatusError("LLM", 403, nil))))
	assert.Equal(t, codes.Unavailable, status.Code(ToStatus(StatusError("LLM", 503, nil))))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(ToStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.InvalidArgument, status.Code(ToStatus(NewKindError(ErrInvalidInput, "BAD", "bad", nil))))
	assert.Equal(t, codes.Internal, status.Code(ToStatus(errors.New("boom"))))

	already := status.Error(codes.NotFound, "gone")
	assert.Equal(t, already, ToStatus(already))
}
