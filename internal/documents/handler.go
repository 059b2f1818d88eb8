package documents

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-backend/internal/shared/server/middleware"
	"docchat-backend/internal/shared/server/respond"
)

// multipartOverhead leaves room for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes()+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadError(c, ErrTooLarge)
			return
		}
		h.uploadError(c, ErrMissingFile)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), owner, UploadInput{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		h.uploadError(c, err)
		return
	}

	middleware.SetDocumentID(c, doc.ID)
	middleware.SetStatusTransition(c, "->"+string(doc.Status))
	respond.OK(c, gin.H{"success": true, "document": toSummary(doc)})
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingFile):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "No file provided", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Only PDF files are allowed", nil)
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation,
			"File size must be less than "+sizeLabel(h.Svc.MaxBytes()), nil)
	case errors.Is(err, ErrUserNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "User not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to upload document", nil)
	}
}

func (h *Handler) list(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	docs, err := h.Svc.List(c.Request.Context(), owner)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to fetch documents", nil)
		return
	}
	items := make([]ListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toListItem(doc))
	}
	respond.OK(c, gin.H{"documents": items})
}

func (h *Handler) get(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id := c.Param("id")
	middleware.SetDocumentID(c, id)
	doc, err := h.Svc.Get(c.Request.Context(), owner, id)
	if err != nil {
		h.lookupError(c, err, "Failed to fetch document")
		return
	}
	respond.OK(c, gin.H{"document": toDetail(doc)})
}

func (h *Handler) delete(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id := c.Param("id")
	middleware.SetDocumentID(c, id)
	if err := h.Svc.Delete(c.Request.Context(), owner, id); err != nil {
		h.lookupError(c, err, "Failed to delete document")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

func (h *Handler) lookupError(c *gin.Context, err error, internalMsg string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Document not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, internalMsg, nil)
}

func (h *Handler) owner(c *gin.Context) (Owner, bool) {
	owner, err := NewOwner(middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Unauthorized", nil)
		return Owner{}, false
	}
	return owner, true
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
