package citadelcbt

import "context"

// QuizRepository is the storage collaborator for published quizzes.
// List calls return an empty slice, never nil, when there is nothing stored.
type QuizRepository interface {
	SaveQuiz(ctx context.Context, quiz *Quiz) (string, error)
	ListQuizzes(ctx context.Context) ([]Quiz, error)
	GetQuiz(ctx context.Context, id string) (*Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
}

// AdminRepository is the storage collaborator for the administrator registry
type AdminRepository interface {
	SaveAdmin(ctx context.Context, admin *AdminUser) (string, error)
	ListAdmins(ctx context.Context) ([]AdminUser, error)
	FindAdmin(ctx context.Context, username string) (*AdminUser, error)
	DeleteAdmin(ctx context.Context, id string) error
}

// Store is a backend that holds both collections
type Store interface {
	QuizRepository
	AdminRepository
	Close() error
}

// OpenStore returns the configured backend. The SQLite db is reused as the
// store unless Mongo is selected.
func OpenStore(ctx context.Context, cfg *Config, db *DB) (Store, error) {
	if cfg.StorageDriver == StorageMongo {
		store, err := OpenMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return db, nil
}
