package service

import (
	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
)

// UserDirectory resolves user ids to minimal profiles. The account subsystem
// owns user records; this core only consumes this view of them.
type UserDirectory interface {
	Exists(id uuid.UUID) (bool, error)
	Resolve(ids []uuid.UUID) (map[uuid.UUID]model.UserProfile, error)
}

// CommunityDirectory resolves a community to its owner and member ids. Used
// only by the community conversation creation path.
type CommunityDirectory interface {
	Get(id uuid.UUID) (*model.CommunityInfo, error)
}
