package repository

import (
	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"gorm.io/gorm"
)

// CommunityRepository is the store-backed adapter for the community directory
// collaborator: it resolves a community to its owner and current member set.
type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// Create inserts a community with its member rows (seeder and tests).
func (r *CommunityRepository) Create(community *model.Community) error {
	return r.db.Create(community).Error
}

// Get resolves a community id to its directory shape.
func (r *CommunityRepository) Get(id uuid.UUID) (*model.CommunityInfo, error) {
	var community model.Community
	if err := r.db.Where("id = ?", id).First(&community).Error; err != nil {
		return nil, err
	}

	var memberIDs []uuid.UUID
	err := r.db.Model(&model.CommunityMember{}).
		Where("community_id = ?", id).
		Pluck("user_id", &memberIDs).Error
	if err != nil {
		return nil, err
	}

	return &model.CommunityInfo{
		ID:        community.ID,
		Name:      community.Name,
		Avatar:    community.Avatar,
		OwnerID:   community.OwnerID,
		MemberIDs: memberIDs,
	}, nil
}
