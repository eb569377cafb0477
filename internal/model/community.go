package model

import (
	"time"

	"github.com/google/uuid"
)

// Community is the minimal community row the messaging core mirrors from the
// community subsystem. Membership management happens there; this core only
// reads owner and member ids when creating the community's conversation.
type Community struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Avatar    string    `json:"avatar" gorm:"size:500;default:''"`
	OwnerID   uuid.UUID `json:"owner_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Members []CommunityMember `json:"members,omitempty" gorm:"foreignKey:CommunityID"`
}

// CommunityMember records a user's membership in a community.
type CommunityMember struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CommunityID uuid.UUID `json:"community_id" gorm:"type:uuid;uniqueIndex:idx_community_user;not null"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_community_user;not null"`
	JoinedAt    time.Time `json:"joined_at"`
}

// CommunityInfo is the resolution shape returned by the community directory.
type CommunityInfo struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}
