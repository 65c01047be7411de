/*
Package logx provides a structured logging wrapper based on zerolog.

This file holds the chi request-logging middleware and the IP anonymisation used by it
and by the WebSocket handler.
*/
package logx

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const unknownIP = "unknown_ip"

// AnonymizeIP masks the host part of an address: IPv4 keeps a /24, IPv6 a /64.
// Loopback addresses are returned unchanged.
func AnonymizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return unknownIP
	}
	ip = ip.Unmap()
	if ip.IsLoopback() {
		return ip.String()
	}

	bits := 64
	if ip.Is4() {
		bits = 24
	}
	prefix, err := ip.Prefix(bits)
	if err != nil {
		return unknownIP
	}
	return prefix.Addr().String()
}

// RequestLogger logs every request when it completes. WebSocket upgrades are logged once the
// session ends, with its duration. The request-scoped logger is stored in the request context.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := Component("http").With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", AnonymizeIP(r.RemoteAddr)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			if isUpgrade(r) {
				logger.Info().Dur("session", time.Since(start)).Msg("WebSocket session ended")
				return
			}

			status := ww.Status()
			levelFor(&logger, status).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func levelFor(logger *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	default:
		return logger.Info()
	}
}
