// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"codeberg.org/oliverandrich/modhost/internal/abuse"
	"codeberg.org/oliverandrich/modhost/internal/config"
	"codeberg.org/oliverandrich/modhost/internal/handlers"
	"codeberg.org/oliverandrich/modhost/internal/i18n"
	"codeberg.org/oliverandrich/modhost/internal/services/session"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, sessions *session.Manager, guard *abuse.Limiter) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(i18nMiddleware())
	e.Use(abuseKeyMiddleware())
	e.Use(sessionMiddleware(sessions))
	e.Use(abuseBlockMiddleware(guard))
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acceptLang := c.Request().Header.Get("Accept-Language")
			lang := i18n.MatchLanguage(acceptLang)
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// abuseKeyMiddleware tags the request context with the client identity the
// abuse limiter buckets by. Authenticated requests switch to the user id in
// sessionMiddleware; until then the client IP has to do.
func abuseKeyMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := abuse.WithKey(c.Request().Context(), "ip:"+c.RealIP())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// abuseBlockMiddleware rejects clients whose charge bucket has run dry. It
// runs after sessionMiddleware so authenticated clients are judged by their
// user bucket, not the shared address bucket.
func abuseBlockMiddleware(guard *abuse.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if guard.Blocked(c.Request().Context()) {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success": false,
					"message": "too many invalid requests, slow down",
				})
			}
			return next(c)
		}
	}
}

// sessionMiddleware resolves the session cookie, if present, and exposes the
// user to handlers. An invalid or expired cookie is dropped silently; the
// request continues anonymously.
func sessionMiddleware(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := sessions.ReadCookie(c.Request())
			if err != nil {
				return next(c)
			}

			sess, err := sessions.Get(c.Request().Context(), id)
			if err != nil {
				sessions.ClearCookie(c.Response())
				return next(c)
			}

			c.Set(handlers.UserIDKey, sess.UserID)
			c.Set(handlers.SessionIDKey, sess.ID)

			ctx := abuse.WithKey(c.Request().Context(), fmt.Sprintf("user:%d", sess.UserID))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
