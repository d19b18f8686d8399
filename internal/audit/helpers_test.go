package audit

import (
	"io"
	"log/slog"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func configDisabled() config.NATSConfig {
	return config.NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "x"}
}
