package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dokstore/dokstore/internal/document"
	"github.com/dokstore/dokstore/internal/document/service"
)

// RegisterDocumentRoutes registers the document API on r.
func RegisterDocumentRoutes(r *gin.Engine, svc *service.Service) {
	r.POST("/api/types", func(c *gin.Context) { createType(c, svc) })
	r.GET("/api/types/:id", func(c *gin.Context) { getType(c, svc) })

	r.POST("/api/documents", func(c *gin.Context) { createDocument(c, svc) })
	r.GET("/api/documents/:id", func(c *gin.Context) { getDocument(c, svc) })
	r.GET("/api/documents/:id/file", func(c *gin.Context) { getFile(c, svc) })
	r.GET("/api/documents/:id/chain", func(c *gin.Context) { getChain(c, svc) })
	r.GET("/api/documents/:id/head", func(c *gin.Context) { getHead(c, svc) })
	r.GET("/api/documents/:id/events", func(c *gin.Context) { getEvents(c, svc) })
	r.POST("/api/documents/:id/replace", func(c *gin.Context) { replaceDocument(c, svc) })
	r.DELETE("/api/documents/:id", func(c *gin.Context) { deleteDocument(c, svc) })
	r.GET("/api/documents/:id/preview", func(c *gin.Context) { getPreview(c, svc) })
	r.POST("/api/documents/:id/preview", func(c *gin.Context) { regeneratePreview(c, svc) })
}

func createType(c *gin.Context, svc *service.Service) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := svc.CreateType(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, document.ErrDuplicateName) {
			c.JSON(http.StatusConflict, gin.H{"error": "type name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func getType(c *gin.Context, svc *service.Service) {
	t, err := svc.GetType(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// createDocument accepts a multipart form: name, typeId and the file.
func createDocument(c *gin.Context, svc *service.Service) {
	name := c.PostForm("name")
	typeID := c.PostForm("typeId")
	if name == "" || typeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and typeId are required"})
		return
	}
	data, contentType, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := svc.Create(c.Request.Context(), name, typeID, data, contentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func getDocument(c *gin.Context, svc *service.Service) {
	d, err := svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func getFile(c *gin.Context, svc *service.Service) {
	data, d, err := svc.File(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func getChain(c *gin.Context, svc *service.Service) {
	chain, err := svc.Chain(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chain)
}

func getHead(c *gin.Context, svc *service.Service) {
	head, err := svc.Head(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, head)
}

func getEvents(c *gin.Context, svc *service.Service) {
	events, err := svc.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// replaceDocument accepts a multipart form with the new file and an
// optional name override. The target must be the current, unprotected head.
func replaceDocument(c *gin.Context, svc *service.Service) {
	data, contentType, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := svc.Replace(c.Request.Context(), c.Param("id"), c.PostForm("name"), data, contentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func deleteDocument(c *gin.Context, svc *service.Service) {
	if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func getPreview(c *gin.Context, svc *service.Service) {
	data, d, err := svc.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if data == nil {
		// no preview available; tell the caller where generation stands
		status := http.StatusNotFound
		if d.PreviewStatus == document.PreviewPending {
			status = http.StatusAccepted
		}
		c.JSON(status, gin.H{"previewStatus": d.PreviewStatus})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func regeneratePreview(c *gin.Context, svc *service.Service) {
	force := c.Query("force") == "true"
	if err := svc.Regenerate(c.Request.Context(), c.Param("id"), force); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// readUpload pulls the "file" part out of a multipart request.
func readUpload(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, document.ErrProtected):
		c.JSON(http.StatusLocked, gin.H{"error": "document is protected"})
	case errors.Is(err, document.ErrNotHead):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, document.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
