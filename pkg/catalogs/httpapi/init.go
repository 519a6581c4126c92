package httpapi

import (
	"log/slog"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
)

func init() {
	catalog.Register("http", func(logger *slog.Logger) catalog.Driver { return New(logger) })
}
