package service

import (
	"careerbook/internal/domain"
	"careerbook/internal/models"
)

// ConsultantServiceImpl serves the config-backed consultant directory.
type ConsultantServiceImpl struct {
	repo domain.Repository
}

func NewConsultantService(repo domain.Repository) *ConsultantServiceImpl {
	return &ConsultantServiceImpl{repo: repo}
}

// ListConsultants returns active consultants in display order.
func (s *ConsultantServiceImpl) ListConsultants() []*models.Consultant {
	all := s.repo.GetConsultants()
	active := make([]*models.Consultant, 0, len(all))
	for _, c := range all {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active
}

func (s *ConsultantServiceImpl) GetConsultant(id int64) (*models.Consultant, error) {
	return s.repo.GetConsultantByID(id)
}
