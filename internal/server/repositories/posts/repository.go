package posts

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

type Repository interface {
	List(ctx context.Context, params models.ListParams) ([]models.Post, int, error)
	Get(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	Update(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error)
	Delete(ctx context.Context, id int64) error
}
