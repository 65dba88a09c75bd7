// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	"github.com/taibuivan/extcontrol/internal/platform/respond"
)

// PanicRecovery turns a handler panic into a generic 500 and logs the stack.
// [http.ErrAbortHandler] is re-raised so net/http can drop the connection.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}

				ctx := request.Context()
				requestLogger := ctxutil.GetLogger(ctx)
				if requestLogger == slog.Default() {
					requestLogger = logger
				}
				requestLogger.ErrorContext(ctx, "panic_recovered",
					slog.Any("panic", recovered),
					slog.String("stack", string(debug.Stack())),
				)

				respond.Error(writer, request, apperr.Internal(nil))
			}()

			next.ServeHTTP(writer, request)
		})
	}
}
