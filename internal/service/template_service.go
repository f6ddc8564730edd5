package service

import (
	"context"
	"errors"
	"strings"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TemplateInput struct {
	Name        string
	Description string
	Activities  []domain.Activity
}

type TemplateService interface {
	Create(ctx context.Context, therapistID primitive.ObjectID, input TemplateInput) (*domain.Template, error)
	Get(ctx context.Context, therapistID, templateID primitive.ObjectID) (*domain.Template, error)
	List(ctx context.Context, therapistID primitive.ObjectID) ([]domain.Template, error)
	Update(ctx context.Context, therapistID, templateID primitive.ObjectID, input TemplateInput) (*domain.Template, error)
	Delete(ctx context.Context, therapistID, templateID primitive.ObjectID) error
}

type templateService struct {
	templateRepo repository.TemplateRepository
}

func NewTemplateService(templateRepo repository.TemplateRepository) TemplateService {
	return &templateService{templateRepo: templateRepo}
}

func (in *TemplateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return validationError("template name is required")
	}
	return validateActivities(in.Activities)
}

func (s *templateService) Create(ctx context.Context, therapistID primitive.ObjectID, input TemplateInput) (*domain.Template, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	tmpl := &domain.Template{
		TherapistID: therapistID,
		Name:        input.Name,
		Description: input.Description,
		Activities:  input.Activities,
	}
	id, err := s.templateRepo.Create(ctx, tmpl)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrTemplateNameTaken
		}
		return nil, err
	}
	tmpl.ID = id
	return tmpl, nil
}

func (s *templateService) Get(ctx context.Context, therapistID, templateID primitive.ObjectID) (*domain.Template, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if tmpl.TherapistID != therapistID {
		return nil, ErrTemplateNotFound
	}
	return tmpl, nil
}

func (s *templateService) List(ctx context.Context, therapistID primitive.ObjectID) ([]domain.Template, error) {
	return s.templateRepo.GetByTherapistID(ctx, therapistID)
}

func (s *templateService) Update(ctx context.Context, therapistID, templateID primitive.ObjectID, input TemplateInput) (*domain.Template, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	tmpl, err := s.Get(ctx, therapistID, templateID)
	if err != nil {
		return nil, err
	}
	tmpl.Name = input.Name
	tmpl.Description = input.Description
	tmpl.Activities = input.Activities

	if err := s.templateRepo.Update(ctx, tmpl); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrTemplateNameTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tmpl, nil
}

func (s *templateService) Delete(ctx context.Context, therapistID, templateID primitive.ObjectID) error {
	if err := s.templateRepo.Delete(ctx, templateID, therapistID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}
