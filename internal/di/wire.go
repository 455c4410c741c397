//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"promptvault-backend/internal/config"
)

// InitializeContainer assembles the application container.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(NewContainer)
	return nil, nil
}
