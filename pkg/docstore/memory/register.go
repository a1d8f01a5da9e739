package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
)

func init() {
	docstore.Register(docstore.Registration{
		Info: docstore.StoreInfo{
			Type:        "memory",
			DisplayName: "In-memory",
			Description: "Process-local store for small datasets and dry runs; contents are lost on exit",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (docstore.Store, error) {
			return New(logger), nil
		},
	})
}
