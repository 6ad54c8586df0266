package blog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogapi/internal/auth"
	"github.com/2beens/blogapi/pkg"
)

type newBlogRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type updateBlogRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

type blogService interface {
	Create(ctx context.Context, title, content, authorID string) (*Blog, error)
	ListAll(ctx context.Context) ([]*Blog, error)
	GetByID(ctx context.Context, id string) (*Blog, error)
	Update(ctx context.Context, id, requesterID string, fields UpdateFields) (*Blog, error)
	Delete(ctx context.Context, id, requesterID string) error
	ToggleLike(ctx context.Context, id, userID string) (*Blog, error)
	AddComment(ctx context.Context, id, userID, text string) (*Blog, error)
}

var _ blogService = (*Service)(nil)

type Handler struct {
	service  blogService
	validate *validator.Validate
}

func NewBlogHandler(service blogService) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/blogs", handler.handleNewBlog).Methods("POST", "OPTIONS").Name("new-blog")
	router.HandleFunc("/api/blogs", handler.handleAll).Methods("GET").Name("all-blogs")
	router.HandleFunc("/api/blogs/{id}", handler.handleGet).Methods("GET").Name("get-blog")
	router.HandleFunc("/api/blogs/{id}", handler.handleUpdateBlog).Methods("PUT", "OPTIONS").Name("update-blog")
	router.HandleFunc("/api/blogs/{id}", handler.handleDeleteBlog).Methods("DELETE", "OPTIONS").Name("delete-blog")
	router.HandleFunc("/api/blogs/{id}/like", handler.handleToggleLike).Methods("POST", "OPTIONS").Name("like-blog")
	router.HandleFunc("/api/blogs/{id}/comment", handler.handleAddComment).Methods("POST", "OPTIONS").Name("comment-blog")
}

func (handler *Handler) handleNewBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var newBlogReq newBlogRequest
	if !decodeBody(w, r, &newBlogReq) {
		return
	}
	if err := handler.validate.Struct(newBlogReq); err != nil {
		writeError(w, "new blog", ErrBlogTitleOrContentEmpty)
		return
	}

	newBlog, err := handler.service.Create(r.Context(), newBlogReq.Title, newBlogReq.Content, userID)
	if err != nil {
		writeError(w, "new blog", err)
		return
	}

	log.Tracef("new blog %s: [%s] added", newBlog.ID, newBlog.Title)
	pkg.WriteJSONResponse(w, newBlog, http.StatusCreated)
}

func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	allBlogs, err := handler.service.ListAll(r.Context())
	if err != nil {
		writeError(w, "get all blogs", err)
		return
	}

	pkg.WriteJSONResponse(w, allBlogs, http.StatusOK)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	blog, err := handler.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, "get blog "+id, err)
		return
	}

	pkg.WriteJSONResponse(w, blog, http.StatusOK)
}

func (handler *Handler) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var updateBlogReq updateBlogRequest
	if !decodeBody(w, r, &updateBlogReq) {
		return
	}

	updated, err := handler.service.Update(r.Context(), id, userID, UpdateFields{
		Title:   updateBlogReq.Title,
		Content: updateBlogReq.Content,
	})
	if err != nil {
		writeError(w, "update blog "+id, err)
		return
	}

	pkg.WriteJSONResponse(w, updated, http.StatusOK)
}

func (handler *Handler) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if err := handler.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, "delete blog "+id, err)
		return
	}

	pkg.WriteJSONResponse(w, pkg.MessageResponse{Message: "Blog deleted successfully"}, http.StatusOK)
}

func (handler *Handler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	blog, err := handler.service.ToggleLike(r.Context(), id, userID)
	if err != nil {
		writeError(w, "toggle like "+id, err)
		return
	}

	pkg.WriteJSONResponse(w, blog, http.StatusOK)
}

func (handler *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var commentReq commentRequest
	if !decodeBody(w, r, &commentReq) {
		return
	}
	if err := handler.validate.Struct(commentReq); err != nil {
		writeError(w, "add comment", ErrCommentEmpty)
		return
	}

	blog, err := handler.service.AddComment(r.Context(), id, userID, commentReq.Text)
	if err != nil {
		writeError(w, "add comment "+id, err)
		return
	}

	pkg.WriteJSONResponse(w, blog, http.StatusOK)
}

// requireUser reads the caller set by the auth middleware. Routes using it
// are never public, so a missing id means the gate was bypassed.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		pkg.WriteErrorResponse(w, http.StatusUnauthorized, "Not authorized, no token", nil)
		return "", false
	}
	return userID, true
}

// decodeBody treats an empty body as an empty JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		log.Tracef("unmarshal json body: %s", err)
		pkg.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, op string, err error) {
	if pkg.StatusFromError(err) >= http.StatusInternalServerError {
		log.Errorf("%s: %s", op, err)
	} else {
		log.Tracef("%s: %s", op, err)
	}
	pkg.WriteServiceError(w, err)
}
