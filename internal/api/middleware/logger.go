package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LoggerConfig struct {
	Skipper         middleware.Skipper
	Level           zerolog.Level
	LogRequestBody  bool
	LogResponseBody bool
}

func LoggerConfigFromServer(cfg config.LoggerServer) LoggerConfig {
	return LoggerConfig{
		Skipper:         middleware.DefaultSkipper,
		Level:           cfg.RequestLevel,
		LogRequestBody:  cfg.LogRequestBody,
		LogResponseBody: cfg.LogResponseBody,
	}
}

type bodyCaptureWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Logger attaches a request scoped logger (request id, method, path) to the request context,
// retrievable via util.LogFromContext, and logs every finished request at the configured level.
func Logger(cfg LoggerConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			res := c.Response()
			start := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			l := log.With().
				Str("id", id).
				Str("method", req.Method).
				Str("path", c.Path()).
				Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			var reqBody []byte
			if cfg.LogRequestBody && req.Body != nil {
				reqBody, _ = io.ReadAll(req.Body)
				req.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			var resBody *bytes.Buffer
			if cfg.LogResponseBody {
				resBody = new(bytes.Buffer)
				res.Writer = &bodyCaptureWriter{ResponseWriter: res.Writer, body: resBody}
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			e := l.WithLevel(cfg.Level).
				Int("status", res.Status).
				Str("remote_ip", c.RealIP()).
				Dur("duration", time.Since(start)).
				Int64("bytes_out", res.Size)
			if err != nil {
				e = e.Err(err)
			}
			if reqBody != nil {
				e = e.Bytes("request_body", reqBody)
			}
			if resBody != nil {
				e = e.Bytes("response_body", resBody.Bytes())
			}
			e.Msg("http_request")

			return nil
		}
	}
}
