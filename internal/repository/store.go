package repository

import "github.com/iliyamo/pipeline-service/internal/database"

// Store groups the repositories bound to one database handle, typically
// the per-request connection acquired by the session middleware.
type Store struct {
	Users     *UserRepo
	Pipelines *PipelineRepo
}

func NewStore(db database.DBTX, driver database.Driver) *Store {
	return &Store{
		Users:     NewUserRepo(db, driver),
		Pipelines: NewPipelineRepo(db, driver),
	}
}
