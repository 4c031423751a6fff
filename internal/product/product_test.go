package product

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/store"
)

type stubProducts struct {
	products      []models.Product
	featuredCalls int
}

func (s *stubProducts) All(context.Context) ([]models.Product, error) { return s.products, nil }

func (s *stubProducts) Featured(context.Context) ([]models.Product, error) {
	s.featuredCalls++
	out := []models.Product{}
	for _, p := range s.products {
		if p.IsFeatured {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	for i := range s.products {
		if s.products[i].ID.Hex() == id {
			return &s.products[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubProducts) Create(_ context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products = append(s.products, *p)
	return nil
}

func (s *stubProducts) Delete(context.Context, string) error { return nil }

func (s *stubProducts) ToggleFeatured(_ context.Context, id string) (*models.Product, error) {
	p, err := s.FindByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	p.IsFeatured = !p.IsFeatured
	return p, nil
}

func newStubService() (*Service, *stubProducts) {
	stub := &stubProducts{products: []models.Product{
		{ID: primitive.NewObjectID(), Name: "mug", Price: 9.5, IsFeatured: true},
		{ID: primitive.NewObjectID(), Name: "plate", Price: 4},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(stub, nil, logger), stub
}

func TestFeatured(t *testing.T) {
	svc, stub := newStubService()

	featured, err := svc.Featured(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(featured) != 1 || featured[0].Name != "mug" {
		t.Fatalf("unexpected featured set: %+v", featured)
	}
	if stub.featuredCalls != 1 {
		t.Errorf("expected one store call, got %d", stub.featuredCalls)
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, stub := newStubService()

	p := &models.Product{Name: "bowl", Price: 3}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created := stub.products[len(stub.products)-1]
	if created.Description != "No Description Available" {
		t.Errorf("expected default description, got %q", created.Description)
	}
	if created.CountInStock != 1 {
		t.Errorf("expected default stock count 1, got %d", created.CountInStock)
	}
}
