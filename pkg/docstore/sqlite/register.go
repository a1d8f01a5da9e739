package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
)

func init() {
	docstore.Register(docstore.Registration{
		Info: docstore.StoreInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Embedded single-file store; no server required",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (docstore.Store, error) {
			cfg, err := FromMap(settings)
			if err != nil {
				return nil, err
			}
			return New(ctx, cfg, logger)
		},
	})
}
