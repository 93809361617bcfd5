package accounts_http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ledger/internal/domain"
)

func TestWriteErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
		level  zapcore.Level
		logged bool
	}{
		{
			name:   "client went away",
			err:    fmt.Errorf("failed to begin transaction: %w", context.Canceled),
			status: statusClientClosedRequest,
			kind:   "CANCELLED",
			level:  zapcore.InfoLevel,
			logged: true,
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("waiting for lock: %w", context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			kind:   "TIMEOUT",
			level:  zapcore.WarnLevel,
			logged: true,
		},
		{
			name:   "insufficient funds",
			err:    fmt.Errorf("account 1 balance 5 is below 10: %w", domain.ErrInsufficientFunds),
			status: http.StatusConflict,
			kind:   "INSUFFICIENT_FUNDS",
		},
		{
			name:   "unknown",
			err:    fmt.Errorf("connection reset"),
			status: http.StatusInternalServerError,
			kind:   "INTERNAL",
			level:  zapcore.ErrorLevel,
			logged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			rec := httptest.NewRecorder()

			writeError(rec, zap.New(core), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decode[ErrorResponse](t, rec).Error)
			if !tt.logged {
				assert.Zero(t, logs.Len())
				return
			}
			if assert.Equal(t, 1, logs.Len()) {
				assert.Equal(t, tt.level, logs.All()[0].Level)
			}
		})
	}
}
