package jsondoc

import (
	"time"

	"github.com/cmoralesdiaz/almacen/internal/domain"
	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

type userDoc struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
}

type userRepository struct {
	store *docstore.Store
}

// NewUserRepository создаёт репозиторий пользователей поверх document store.
func NewUserRepository(store *docstore.Store) domain.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) List() ([]domain.User, error) {
	docs, err := readTyped[userDoc](r.store, collectionUsers)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, domain.User(doc))
	}
	return users, nil
}

func (r *userRepository) GetByEmail(email string) (domain.User, error) {
	docs, err := readTyped[userDoc](r.store, collectionUsers)
	if err != nil {
		return domain.User{}, err
	}
	for _, doc := range docs {
		if doc.Email == email {
			return domain.User(doc), nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (r *userRepository) Create(user domain.User) (domain.User, error) {
	id, err := r.store.NextID(collectionUsers)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = id
	user.CreatedAt = time.Now().UTC()

	docs, err := readTyped[userDoc](r.store, collectionUsers)
	if err != nil {
		return domain.User{}, err
	}
	docs = append(docs, userDoc(user))
	if err := writeTyped(r.store, collectionUsers, docs); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
