package model

import "time"

// Pipeline is a named, status-tagged record owned by exactly one user.  It
// corresponds to a row in the `pipelines` table.  Status is free text.
// OwnerUsername is not a column; it is filled by queries that join the
// owner so ownership can be compared against the authenticated principal.
type Pipeline struct {
	ID            uint64
	Name          string
	Status        string
	OwnerID       uint64
	OwnerUsername string
	CreatedAt     time.Time
}
