package repo

import (
	"time"

	"taskrelay/backend/app/models"

	"gorm.io/gorm"
)

// UserRepository persists operator accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Exists reports whether an account with username is already stored.
func (r *UserRepository) Exists(username string) (bool, error) {
	var n int64
	err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

// Get returns gorm.ErrRecordNotFound when the account is missing.
func (r *UserRepository) Get(username string) (*models.User, error) {
	u := new(models.User)
	if err := r.db.Where("username = ?", username).Take(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) MarkLogin(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}

func (r *UserRepository) All() ([]models.User, error) {
	var out []models.User
	err := r.db.Order("id").Find(&out).Error
	return out, err
}
