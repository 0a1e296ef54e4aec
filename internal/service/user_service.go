package service

import (
	"context"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"
)

type UserService interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error)
}

type UserServiceImpl struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &UserServiceImpl{userRepo: userRepo}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	return s.userRepo.Create(ctx, &req)
}

func (s *UserServiceImpl) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error) {
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.userRepo.Update(ctx, id, params)
}
