package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/cache"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophblog/internal/server/storage"
)

const (
	// PostListCachePrefix namespaces every cached listing.
	PostListCachePrefix = "posts:list:"
	// PostGenerationKey holds the listing generation, raised after every
	// committed post write. Listing keys embed the generation read before
	// the database query, so a fill that races a write lands under a key
	// no later reader asks for.
	PostGenerationKey = "posts:gen"
)

// ImageUpload is an image attached to a new post.
type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// PostService implements post reads and writes. Listings are served from
// the cache when possible; every successful write drops all cached listings
// after its transaction commits.
type PostService struct {
	db          dbx.Conn
	repomanager repomanager.RepositoryManager
	cache       cache.Cache
	images      storage.ImageStore
	cacheTTL    time.Duration
	log         logging.Logger
}

// NewPostService wires a PostService. c must not be nil (use cache.Nop);
// images may be nil when object storage is not configured.
func NewPostService(db dbx.Conn, m repomanager.RepositoryManager, c cache.Cache, images storage.ImageStore,
	cfg *config.Config, log logging.Logger) *PostService {
	return &PostService{
		db:          db,
		repomanager: m,
		cache:       c,
		images:      images,
		cacheTTL:    cfg.CacheTTL,
		log:         log.With("module", "posts"),
	}
}

// List returns one page of posts, newest first.
func (s *PostService) List(ctx context.Context, params models.ListParams) (*models.PostPage, error) {
	gen, cacheable := s.generation(ctx)
	key := params.CacheKey(fmt.Sprintf("%sg%d:", PostListCachePrefix, gen))

	if cacheable {
		if page, ok := s.cachedPage(ctx, key); ok {
			return page, nil
		}
	}

	items, total, err := s.repomanager.Posts(s.db).List(ctx, params)
	if err != nil {
		return nil, err
	}

	page := &models.PostPage{
		Posts:       items,
		TotalPosts:  total,
		CurrentPage: params.Page,
		PerPage:     params.PerPage,
		TotalPages:  models.TotalPages(total, params.PerPage),
	}

	if !cacheable {
		return page, nil
	}
	if b, err := json.Marshal(page); err == nil {
		if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
			s.log.Warn(ctx, "cache set failed", "key", key, "error", err)
		}
	}

	return page, nil
}

// generation reads the current listing generation. When it cannot be read
// the listing bypasses the cache entirely.
func (s *PostService) generation(ctx context.Context) (int64, bool) {
	b, err := s.cache.Get(ctx, PostGenerationKey)
	if errors.Is(err, cache.ErrMiss) {
		return 0, true
	}
	if err != nil {
		s.log.Warn(ctx, "cache generation read failed", "error", err)
		return 0, false
	}
	gen, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		s.log.Warn(ctx, "cache generation is corrupt", "value", string(b))
		return 0, false
	}
	return gen, true
}

func (s *PostService) cachedPage(ctx context.Context, key string) (*models.PostPage, bool) {
	b, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn(ctx, "cache get failed", "key", key, "error", err)
		}
		return nil, false
	}

	var page models.PostPage
	if err := json.Unmarshal(b, &page); err != nil {
		s.log.Warn(ctx, "cached listing is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &page, true
}

func (s *PostService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).Get(ctx, id)
	if err != nil {
		return nil, postErr(err)
	}
	return post, nil
}

// Create validates and stores post. When img is set it is uploaded first;
// an upload failure is logged and the post is stored without an image.
func (s *PostService) Create(ctx context.Context, post *models.Post, img *ImageUpload) (*models.Post, error) {
	post.Normalize()
	if err := post.Validate(); err != nil {
		return nil, err
	}

	if img != nil {
		post.Image = s.uploadImage(ctx, img)
	}

	var created *models.Post
	if err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Posts(tx).Create(ctx, post)
		return err
	}); err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	s.log.Info(ctx, "post created", "id", created.ID, "image", created.Image != nil)
	return created, nil
}

func (s *PostService) uploadImage(ctx context.Context, img *ImageUpload) *string {
	if s.images == nil {
		s.log.Warn(ctx, "image upload skipped, object storage is not configured", "filename", img.Filename)
		return nil
	}

	url, err := s.images.StoreImage(ctx, img.Data, img.Filename, img.ContentType)
	if err != nil {
		s.log.Warn(ctx, "image upload failed", "filename", img.Filename, "error", err)
		return nil
	}
	if utf8.RuneCountInString(url) > models.MaxImageLen {
		s.log.Warn(ctx, "image url too long, dropping it", "url", url)
		return nil
	}
	return &url
}

// Update applies patch to the post with the given id.
func (s *PostService) Update(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Post
	if err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updated, err = s.repomanager.Posts(tx).Update(ctx, id, patch)
		return err
	}); err != nil {
		return nil, postErr(err)
	}

	s.invalidateLists(ctx)
	return updated, nil
}

func (s *PostService) Delete(ctx context.Context, id int64) error {
	if err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Posts(tx).Delete(ctx, id)
	}); err != nil {
		return postErr(err)
	}

	s.invalidateLists(ctx)
	s.log.Info(ctx, "post deleted", "id", id)
	return nil
}

// invalidateLists retires every cached listing. Raising the generation is
// what makes later reads miss; DeletePrefix only reclaims the space.
func (s *PostService) invalidateLists(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, PostGenerationKey); err != nil {
		s.log.Warn(ctx, "cache generation bump failed", "key", PostGenerationKey, "error", err)
	}
	if err := s.cache.DeletePrefix(ctx, PostListCachePrefix); err != nil {
		s.log.Warn(ctx, "cache invalidation failed", "prefix", PostListCachePrefix, "error", err)
	}
}

func postErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.WithMessage(common.ErrorNotFound, "Post not found")
	}
	return err
}
