package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-pdf-templates/internal/editor"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/service"
)

// Handler holds the HTTP handlers
type Handler struct {
	svc         *service.Service
	maxFileSize int64
	version     string
}

type recordRequest struct {
	Prefill map[string]any `json:"prefill"`
}

type generateRequest struct {
	Record   mapping.Record `json:"record"`
	Required []string       `json:"required,omitempty"`
}

type openEditorRequest struct {
	TemplateID string  `json:"templateId" binding:"required"`
	Scale      float64 `json:"scale"`
}

type setPageRequest struct {
	Page *int `json:"page" binding:"required"`
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// ListTemplates handles GET /api/templates
func (h *Handler) ListTemplates(c *gin.Context) {
	res, err := h.svc.ListTemplates(c.Request.Context(), service.ListTemplatesRequest{Category: c.Query("category")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RegisterTemplate handles a multipart upload: file plus id, name,
// description, category and import_forms form values
func (h *Handler) RegisterTemplate(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
		badRequest(c, "file is %d bytes, limit is %d", fh.Size, h.maxFileSize)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot open upload: %v", err)
		return
	}
	defer f.Close()
	src, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "cannot read upload: %v", err)
		return
	}

	importForms, _ := strconv.ParseBool(c.PostForm("import_forms"))
	res, err := h.svc.RegisterTemplate(c.Request.Context(), service.RegisterTemplateRequest{
		ID:          c.PostForm("id"),
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Source:      src,
		ImportForms: importForms,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetTemplate handles GET /api/templates/:id
func (h *Handler) GetTemplate(c *gin.Context) {
	res, err := h.svc.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SaveMapping handles PUT /api/templates/:id/mapping with a field array
func (h *Handler) SaveMapping(c *gin.Context) {
	var m mapping.Mapping
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, "invalid mapping: %v", err)
		return
	}
	res, err := h.svc.SaveMapping(c.Request.Context(), c.Param("id"), m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ImportForms handles POST /api/templates/:id/import-forms?save=true
func (h *Handler) ImportForms(c *gin.Context) {
	save, _ := strconv.ParseBool(c.Query("save"))
	res, err := h.svc.ImportForms(c.Request.Context(), c.Param("id"), save)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RenderPage handles GET /api/templates/:id/pages/:page?scale=1.5
func (h *Handler) RenderPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		badRequest(c, "invalid page %q", c.Param("page"))
		return
	}
	var scale float64
	if s := c.Query("scale"); s != "" {
		if scale, err = strconv.ParseFloat(s, 64); err != nil {
			badRequest(c, "invalid scale %q", s)
			return
		}
	}
	res, err := h.svc.RenderPage(c.Request.Context(), service.RenderPageRequest{TemplateID: c.Param("id"), Page: page, Scale: scale})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", res.PNG)
}

// InitRecord handles POST /api/templates/:id/record
func (h *Handler) InitRecord(c *gin.Context) {
	var req recordRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: %v", err)
			return
		}
	}
	rec, err := h.svc.InitRecord(c.Request.Context(), c.Param("id"), req.Prefill)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// Render handles POST /api/templates/:id/render. It has no side effects:
// nothing is stored or recorded.
func (h *Handler) Render(c *gin.Context) {
	var req generate.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	data, err := h.svc.Render(c.Request.Context(), c.Param("id"), req.Record)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

// Generate handles POST /api/templates/:id/generate and answers with the PDF
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	res, err := h.svc.Generate(c.Request.Context(), generate.SubmitRequest{
		TemplateID: c.Param("id"),
		Record:     req.Record,
		Required:   req.Required,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("X-Document-ID", res.Document.ID)
	c.Header("Content-Disposition", `attachment; filename="`+res.FileName+`"`)
	if res.DeliveryError != "" {
		c.Header("X-Delivery-Error", res.DeliveryError)
	}
	c.Data(http.StatusCreated, "application/pdf", res.Data)
}

// ListDocuments handles GET /api/documents?template_id=&limit=
func (h *Handler) ListDocuments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	docs, err := h.svc.ListDocuments(c.Request.Context(), c.Query("template_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

// GetDocument handles GET /api/documents/:id and returns the stored PDF
func (h *Handler) GetDocument(c *gin.Context) {
	doc, data, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("X-Document-ID", doc.ID)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Editor

// OpenEditor handles POST /api/editor/sessions
func (h *Handler) OpenEditor(c *gin.Context) {
	var req openEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	st, err := h.svc.OpenEditor(c.Request.Context(), req.TemplateID, req.Scale)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) EditorState(c *gin.Context) {
	h.editorReply(c)(h.svc.EditorState(c.Param("sid")))
}

func (h *Handler) EditorSetPage(c *gin.Context) {
	var req setPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	h.editorReply(c)(h.svc.EditorSetPage(c.Param("sid"), *req.Page))
}

func (h *Handler) EditorAddField(c *gin.Context) {
	h.editorReply(c)(h.svc.EditorAddField(c.Param("sid")))
}

func (h *Handler) EditorUpdateField(c *gin.Context) {
	var patch editor.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid patch: %v", err)
		return
	}
	h.editorReply(c)(h.svc.EditorUpdateField(c.Param("sid"), c.Param("fid"), patch))
}

func (h *Handler) EditorDeleteField(c *gin.Context) {
	h.editorReply(c)(h.svc.EditorDeleteField(c.Param("sid"), c.Param("fid")))
}

func (h *Handler) EditorPointer(c *gin.Context) {
	var events []editor.PointerEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		badRequest(c, "invalid events: %v", err)
		return
	}
	h.editorReply(c)(h.svc.EditorPointer(c.Param("sid"), events))
}

func (h *Handler) EditorSave(c *gin.Context) {
	h.editorReply(c)(h.svc.EditorSave(c.Request.Context(), c.Param("sid")))
}

func (h *Handler) EditorPreview(c *gin.Context) {
	png, err := h.svc.EditorPreview(c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// CloseEditor handles DELETE /api/editor/sessions/:sid?save=true
func (h *Handler) CloseEditor(c *gin.Context) {
	save, _ := strconv.ParseBool(c.Query("save"))
	h.editorReply(c)(h.svc.EditorClose(c.Request.Context(), c.Param("sid"), save))
}

func (h *Handler) editorReply(c *gin.Context) func(*service.EditorState, error) {
	return func(st *service.EditorState, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
