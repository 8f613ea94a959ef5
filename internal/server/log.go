package server

import (
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

func logMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusResponseWriter(w)
		next.ServeHTTP(sw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.Status()),
			zap.Int64("bytes", sw.Bytes()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", clientIP(r)),
		}
		switch {
		case sw.Status() >= http.StatusInternalServerError:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	})
}

// recoverMiddleware turns a handler panic into a 500 response.
func recoverMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("handler panic",
				zap.Any("panic", rec),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			if !sw.Written() {
				writeError(w, errInternal, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

// clientIP is the rate limiting key for a request.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
