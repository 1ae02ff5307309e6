package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/gateway"
)

type Services struct {
	Identity  *IdentityResolver
	ReadModel *ReadModel
	Editor    *EditorService
	Creator   *CreatorService
	Directory *DirectoryService
}

func NewServices(gw gateway.Gateway, store IdentityStore, logger zerolog.Logger, mode ListingMode, defaultAgentID int64) *Services {
	return &Services{
		Identity:  NewIdentityResolver(gw, store, logger.With().Str("component", "identity").Logger()),
		ReadModel: NewReadModel(gw, logger.With().Str("component", "read_model").Logger(), mode, defaultAgentID),
		Editor:    NewEditorService(gw, logger.With().Str("component", "editor").Logger()),
		Creator:   NewCreatorService(gw, logger.With().Str("component", "creator").Logger()),
		Directory: NewDirectoryService(gw, logger.With().Str("component", "directory").Logger()),
	}
}
