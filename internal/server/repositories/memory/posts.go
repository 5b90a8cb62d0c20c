package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

type postRepo struct {
	s *Store
}

func clonePost(p models.Post) models.Post {
	if p.Image != nil {
		img := *p.Image
		p.Image = &img
	}
	p.Tags = append(models.Tags{}, p.Tags...)
	return p
}

func (r *postRepo) List(_ context.Context, params models.ListParams) ([]models.Post, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(params.Search)
	matched := []models.Post{}
	for _, p := range r.s.posts {
		if !params.Paged || search == "" || strings.Contains(strings.ToLower(p.Title), search) {
			matched = append(matched, clonePost(p))
		}
	}
	slices.SortFunc(matched, func(a, b models.Post) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	total := len(matched)
	if !params.Paged {
		return matched, total, nil
	}
	if !params.InRange() || params.Offset() >= total {
		return []models.Post{}, total, nil
	}
	end := min(params.Offset()+params.PerPage, total)
	return matched[params.Offset():end], total, nil
}

func (r *postRepo) Get(_ context.Context, id int64) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := clonePost(p)
	return &out, nil
}

func (r *postRepo) Create(_ context.Context, post *models.Post) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextPost++
	post.ID = r.s.nextPost
	if post.Tags == nil {
		post.Tags = models.Tags{}
	}
	r.s.posts[post.ID] = clonePost(*post)
	return post, nil
}

func (r *postRepo) Update(_ context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p = clonePost(p)
	patch.Apply(&p)
	r.s.posts[id] = clonePost(p)
	return &p, nil
}

func (r *postRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.posts, id)
	return nil
}
