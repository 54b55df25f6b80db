// Command api-server runs the shop HTTP API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	shop "github.com/virginia-wolfi/chocolate-shop/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := shop.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		return shop.Run(ctx, lg, m, cfg)
	})
}
