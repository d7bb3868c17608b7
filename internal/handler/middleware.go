package handler

import (
	"log/slog"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"authcore/internal/errors"
	"authcore/internal/service"
)

const (
	userContextKey  = "user"
	sessionTokenKey = "session_token"
	sessionErrorKey = "session_error"
)

// BearerAuth authenticates requests with a session token in the Authorization header.
// The verified *model.Profile is stored under the "user" context key.
func BearerAuth(authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  userContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			profile, err := authService.VerifySession(c.Request().Context(), token)
			if err != nil {
				c.Set(sessionErrorKey, err)
				return nil, err
			}
			c.Set(sessionTokenKey, token)
			return profile, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if sessionErr, ok := c.Get(sessionErrorKey).(error); ok {
				return respondError(c, sessionErr)
			}
			// header missing or not a bearer token
			return respondError(c, errors.ErrTokenInvalid)
		},
	})
}

// RequestLogger forwards one line per request to slog.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("duration_ms", v.Latency.Milliseconds()),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}
