package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskrelay/backend/app/models"
	"taskrelay/backend/app/repo"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidRole        = errors.New("invalid role")
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

type UserService struct {
	users *repo.UserRepository
	cost  int
	now   func() time.Time
}

func NewUserService(users *repo.UserRepository) *UserService {
	return &UserService{users: users, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *UserService) WithCost(cost int) *UserService {
	s.cost = cost
	return s
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *UserService) EnsureAdmin(username, password string) error {
	exists, err := s.users.Exists(username)
	if err != nil || exists {
		return err
	}
	return s.create(username, password, RoleAdmin)
}

func (s *UserService) CreateUser(username, password, role string) error {
	if role == "" {
		role = RoleOperator
	}
	if role != RoleAdmin && role != RoleOperator {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	exists, err := s.users.Exists(username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}
	return s.create(username, password, role)
}

func (s *UserService) create(username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Create(&models.User{Username: username, PasswordHash: string(hash), Role: role})
}

// ValidateCredentials checks a password and stamps the account's last login.
func (s *UserService) ValidateCredentials(username, password string) (*models.User, error) {
	u, err := s.users.Get(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	at := s.now()
	if err := s.users.MarkLogin(u.ID, at); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LastLoginAt = &at
	return u, nil
}

func (s *UserService) List() ([]models.User, error) { return s.users.All() }
