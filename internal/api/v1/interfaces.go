package v1

import (
	"github.com/tandemlabs/tandem/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Boards() domain.BoardRepository
	TimeEntries() domain.TimeEntryRepository
	Comments() domain.CommentRepository
	Users() domain.UserRepository
}
