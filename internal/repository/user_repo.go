package repository

import (
	"github.com/google/uuid"
	"github.com/whisprapp/whispr/internal/model"
	"gorm.io/gorm"
)

// UserRepository is the store-backed adapter for the user directory
// collaborator: it resolves user ids to minimal profiles and answers
// existence checks. Account management itself lives outside this core.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user row (seeder and tests).
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by id.
func (r *UserRepository) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user id is known.
func (r *UserRepository) Exists(id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Resolve maps a set of user ids to minimal profiles. Unknown ids are
// silently absent from the result.
func (r *UserRepository) Resolve(ids []uuid.UUID) (map[uuid.UUID]model.UserProfile, error) {
	profiles := make(map[uuid.UUID]model.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	var users []model.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		profiles[users[i].ID] = users[i].Profile()
	}
	return profiles, nil
}
