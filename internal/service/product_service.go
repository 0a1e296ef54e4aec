package service

import (
	"context"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"
)

// ProductCatalog is the storefront listing: memberships and packages in
// one payload.
type ProductCatalog struct {
	Memberships []*model.Membership `json:"memberships"`
	Packages    []*model.Package    `json:"packages"`
}

type ProductService interface {
	ListProducts(ctx context.Context, availableOnly bool) (*ProductCatalog, error)
}

type ProductServiceImpl struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &ProductServiceImpl{productRepo: productRepo}
}

func (s *ProductServiceImpl) ListProducts(ctx context.Context, availableOnly bool) (*ProductCatalog, error) {
	memberships, err := s.productRepo.ListMemberships(ctx, availableOnly)
	if err != nil {
		return nil, err
	}
	packages, err := s.productRepo.ListPackages(ctx, availableOnly)
	if err != nil {
		return nil, err
	}
	return &ProductCatalog{Memberships: memberships, Packages: packages}, nil
}
