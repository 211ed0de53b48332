package server

import (
	"github.com/danielgtaylor/huma/v2"

	v1 "github.com/tandemlabs/tandem/internal/api/v1"
	"github.com/tandemlabs/tandem/internal/store/postgres"
)

func registerAPIRoutes(api huma.API, store *postgres.Store) {
	v1.RegisterBoardRoutes(api, store)
	v1.RegisterTimeEntryRoutes(api, store)
	v1.RegisterCommentRoutes(api, store)
}
