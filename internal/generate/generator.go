package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/fill"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/pdf"
	"github.com/a3tai/mcp-pdf-templates/internal/render"
)

// Generator turns a template, its mapping and a record into output bytes
type Generator interface {
	Generate(ctx context.Context, tpl mapping.Template, m mapping.Mapping, rec mapping.Record) ([]byte, error)
}

// LocalGenerator fills and renders in process
type LocalGenerator struct {
	engine   *fill.Engine
	renderer *render.Renderer
}

func NewLocalGenerator(engine *fill.Engine, renderer *render.Renderer) *LocalGenerator {
	return &LocalGenerator{engine: engine, renderer: renderer}
}

func (g *LocalGenerator) Generate(ctx context.Context, tpl mapping.Template, m mapping.Mapping, rec mapping.Record) ([]byte, error) {
	filled, err := g.engine.Fill(ctx, tpl, m, rec)
	if err != nil {
		return nil, err
	}
	return g.renderer.Render(ctx, filled)
}

// RenderRequest is the body of the remote render endpoint
type RenderRequest struct {
	Record mapping.Record `json:"record"`
}

// errorResponse is the JSON error body returned by the HTTP API
type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// RemoteGenerator delegates generation to another instance's render
// endpoint: POST {base}/api/templates/{id}/render with a RenderRequest,
// answered by application/pdf.
type RemoteGenerator struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteGenerator(baseURL string, timeout time.Duration) (*RemoteGenerator, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote generator URL: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteGenerator{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (g *RemoteGenerator) Generate(ctx context.Context, tpl mapping.Template, _ mapping.Mapping, rec mapping.Record) ([]byte, error) {
	jsonData, err := json.Marshal(RenderRequest{Record: rec})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := g.baseURL + "/api/templates/" + url.PathEscape(tpl.ID) + "/render"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Render("remote_generate", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Render("remote_generate", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return nil, apperrors.Validation("remote_generate", "%s", msg)
		case http.StatusNotFound:
			return nil, apperrors.NotFound("remote_generate", "%s", msg)
		}
		return nil, apperrors.Render("remote_generate", fmt.Errorf("remote generator returned %d: %s", resp.StatusCode, msg))
	}
	if !pdf.IsPDF(body) {
		return nil, apperrors.Render("remote_generate", fmt.Errorf("remote generator returned %d bytes that are not a PDF", len(body)))
	}
	return body, nil
}
