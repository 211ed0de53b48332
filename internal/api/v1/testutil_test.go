package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/server/middleware"
)

// withUser returns a request context carrying the identity the auth
// middleware would attach in production.
func withUser(userID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyUserID, userID)
}

// ----------------------------------------------------------------------------
// Mock repositories
// ----------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc         func(ctx context.Context, b *domain.KanbanBoard) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.KanbanBoard, error)
	listFunc           func(ctx context.Context) ([]*domain.KanbanBoard, error)
	updateSettingsFunc func(ctx context.Context, id uuid.UUID, s domain.BoardSettings) error
	createColumnFunc   func(ctx context.Context, c *domain.Column) error
	updateColumnFunc   func(ctx context.Context, c *domain.Column) error
	deleteColumnFunc   func(ctx context.Context, boardID, id uuid.UUID) error
	createCardFunc     func(ctx context.Context, c *domain.Card) error
	updateCardFunc     func(ctx context.Context, c *domain.Card) error
	deleteCardFunc     func(ctx context.Context, boardID, id uuid.UUID) error
	saveCardOrdersFunc func(ctx context.Context, boardID uuid.UUID, cards []*domain.Card) error
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.KanbanBoard) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, b)
	}
	return nil
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.KanbanBoard, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockBoardRepo) List(ctx context.Context) ([]*domain.KanbanBoard, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockBoardRepo) UpdateSettings(ctx context.Context, id uuid.UUID, s domain.BoardSettings) error {
	if m.updateSettingsFunc != nil {
		return m.updateSettingsFunc(ctx, id, s)
	}
	return nil
}

func (m *mockBoardRepo) CreateColumn(ctx context.Context, c *domain.Column) error {
	if m.createColumnFunc != nil {
		return m.createColumnFunc(ctx, c)
	}
	return nil
}

func (m *mockBoardRepo) UpdateColumn(ctx context.Context, c *domain.Column) error {
	if m.updateColumnFunc != nil {
		return m.updateColumnFunc(ctx, c)
	}
	return nil
}

func (m *mockBoardRepo) DeleteColumn(ctx context.Context, boardID, id uuid.UUID) error {
	if m.deleteColumnFunc != nil {
		return m.deleteColumnFunc(ctx, boardID, id)
	}
	return nil
}

func (m *mockBoardRepo) CreateCard(ctx context.Context, c *domain.Card) error {
	if m.createCardFunc != nil {
		return m.createCardFunc(ctx, c)
	}
	return nil
}

func (m *mockBoardRepo) UpdateCard(ctx context.Context, c *domain.Card) error {
	if m.updateCardFunc != nil {
		return m.updateCardFunc(ctx, c)
	}
	return nil
}

func (m *mockBoardRepo) DeleteCard(ctx context.Context, boardID, id uuid.UUID) error {
	if m.deleteCardFunc != nil {
		return m.deleteCardFunc(ctx, boardID, id)
	}
	return nil
}

func (m *mockBoardRepo) SaveCardOrders(ctx context.Context, boardID uuid.UUID, cards []*domain.Card) error {
	if m.saveCardOrdersFunc != nil {
		return m.saveCardOrdersFunc(ctx, boardID, cards)
	}
	return nil
}

type mockTimeEntryRepo struct {
	createFunc     func(ctx context.Context, e *domain.TimeEntry) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.TimeEntry, error)
	listByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.TimeEntry, error)
	updateFunc     func(ctx context.Context, e *domain.TimeEntry) error
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTimeEntryRepo) Create(ctx context.Context, e *domain.TimeEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, e)
	}
	return nil
}

func (m *mockTimeEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TimeEntry, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockTimeEntryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.TimeEntry, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockTimeEntryRepo) Update(ctx context.Context, e *domain.TimeEntry) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, e)
	}
	return nil
}

func (m *mockTimeEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockCommentRepo struct {
	createFunc        func(ctx context.Context, c *domain.Comment) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	listByContextFunc func(ctx context.Context, contextID string) ([]*domain.Comment, error)
	updateFunc        func(ctx context.Context, c *domain.Comment) error
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, c)
	}
	return nil
}

func (m *mockCommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCommentRepo) ListByContext(ctx context.Context, contextID string) ([]*domain.Comment, error) {
	if m.listByContextFunc != nil {
		return m.listByContextFunc(ctx, contextID)
	}
	return nil, nil
}

func (m *mockCommentRepo) Update(ctx context.Context, c *domain.Comment) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, c)
	}
	return nil
}

func (m *mockCommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	updateFunc     func(ctx context.Context, u *domain.User) error
	listFunc       func(ctx context.Context) ([]*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

// ----------------------------------------------------------------------------
// Mock store
// ----------------------------------------------------------------------------

type mockDataStore struct {
	boards   *mockBoardRepo
	entries  *mockTimeEntryRepo
	comments *mockCommentRepo
	users    *mockUserRepo
}

func newMockDataStore() *mockDataStore {
	return &mockDataStore{
		boards:   &mockBoardRepo{},
		entries:  &mockTimeEntryRepo{},
		comments: &mockCommentRepo{},
		users:    &mockUserRepo{},
	}
}

func (m *mockDataStore) Boards() domain.BoardRepository          { return m.boards }
func (m *mockDataStore) TimeEntries() domain.TimeEntryRepository { return m.entries }
func (m *mockDataStore) Comments() domain.CommentRepository      { return m.comments }
func (m *mockDataStore) Users() domain.UserRepository            { return m.users }
