package router

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// echoLogger forwards echo's internal log output to zerolog
type echoLogger struct {
	level zerolog.Level
}

func (l *echoLogger) Write(p []byte) (int, error) {
	log.WithLevel(l.level).Str("component", "echo").Msg(string(p))
	return len(p), nil
}
