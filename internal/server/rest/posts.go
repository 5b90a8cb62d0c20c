package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const maxUploadBody = 10 << 20

type createPostRequest struct {
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Category string   `json:"category"`
	Excerpt  string   `json:"excerpt"`
	Image    *string  `json:"image"`
	Tags     []string `json:"tags"`
}

type postResponse struct {
	Message string       `json:"message"`
	Post    *models.Post `json:"post"`
}

// listPosts returns a bare array when no paging parameter is present and the
// paged envelope otherwise.
func (s *HTTPServer) listPosts(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	page, err := s.posts.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !params.Paged {
		respondJSON(w, http.StatusOK, page.Posts)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func parseListParams(r *http.Request) models.ListParams {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("per_page") && !q.Has("search") {
		return models.ListParams{}
	}

	params := models.ListParams{Page: 1, PerPage: models.DefaultPerPage, Paged: true}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			n = 0
		}
		params.Page = n
	}
	if raw := q.Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			params.PerPage = min(n, models.MaxPerPage)
		}
	}
	params.Search = strings.TrimSpace(q.Get("search"))
	return params
}

func postID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, common.WithMessage(common.ErrorNotFound, "Post not found")
	}
	return id, nil
}

func (s *HTTPServer) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	post, err := s.posts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

func (s *HTTPServer) createPost(w http.ResponseWriter, r *http.Request) {
	var (
		post *models.Post
		img  *services.ImageUpload
		err  error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		post, img, err = readMultipartPost(w, r)
	} else {
		post, err = readJSONPost(w, r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.writeError(w, r, err)
		return
	}

	created, err := s.posts.Create(r.Context(), post, img)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func readJSONPost(w http.ResponseWriter, r *http.Request) (*models.Post, error) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	return &models.Post{
		Title:    req.Title,
		Date:     req.Date,
		Category: req.Category,
		Excerpt:  req.Excerpt,
		Image:    req.Image,
		Tags:     models.Tags(req.Tags),
	}, nil
}

func readMultipartPost(w http.ResponseWriter, r *http.Request) (*models.Post, *services.ImageUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}
		return nil, nil, common.NewValidationError("Invalid multipart form")
	}

	form := r.MultipartForm
	post := &models.Post{
		Title:    r.FormValue("title"),
		Date:     r.FormValue("date"),
		Category: r.FormValue("category"),
		Excerpt:  r.FormValue("excerpt"),
		Tags:     formTags(form.Value["tags"]),
	}

	// a text image field is a URL, as in the JSON body; an uploaded file wins
	if urls := form.Value["image"]; len(urls) > 0 {
		post.Image = &urls[0]
	}

	files := form.File["image"]
	if len(files) == 0 || files[0].Filename == "" {
		return post, nil, nil
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return post, nil, nil
	}

	return post, &services.ImageUpload{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

// formTags accepts repeated tags fields, one JSON array, or one
// comma-separated string.
func formTags(values []string) models.Tags {
	switch len(values) {
	case 0:
		return models.Tags{}
	case 1:
		raw := strings.TrimSpace(values[0])
		if strings.HasPrefix(raw, "[") {
			var tags []string
			if err := json.Unmarshal([]byte(raw), &tags); err == nil {
				return models.Tags(tags).Clean()
			}
		}
		return models.ParseTags(raw)
	default:
		return models.Tags(values).Clean()
	}
}

func (s *HTTPServer) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var patch models.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.posts.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, postResponse{Message: "Post updated successfully", Post: post})
}

func (s *HTTPServer) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.posts.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Post deleted successfully")
}
