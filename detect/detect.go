// Package detect turns a photo of the physical grid into a grid.Grid by
// asking a hosted vision model.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"gridbeat/camera"
	"gridbeat/debug"
	"gridbeat/grid"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultAPIVersion = "v1beta"
	DefaultTimeout    = 30 * time.Second
)

// Prompt is sent alongside every image
const Prompt = `This photo shows a grid of 4 rows and 8 columns drawn on paper.
Some cells contain a marker (a coin, a token or a drawn mark); the rest are empty.
Row 1 (top) is the open hi-hat, row 2 the closed hi-hat, row 3 the snare and row 4 (bottom) the kick drum.
Columns 1 to 8 run left to right and are the eight steps of one measure.
Return JSON of the form {"grid": [[...8 booleans...], ...4 rows...]} where true means the cell has a marker.`

// Detector maps an image to a grid. It never fails; on any problem it
// returns an empty grid.
type Detector interface {
	Detect(ctx context.Context, p camera.Payload) grid.Grid
}

// Client asks a Gemini model for the grid
type Client struct {
	Endpoint   string // base URL, empty for the SDK default
	APIVersion string
	Model      string
	APIKey     string
	Timeout    time.Duration
	HTTP       *http.Client
}

// NewClient returns a client with default model and timeout
func NewClient(apiKey string) *Client {
	return &Client{
		APIVersion: DefaultAPIVersion,
		Model:      DefaultModel,
		APIKey:     apiKey,
		Timeout:    DefaultTimeout,
	}
}

// StatusError is a non-2xx response from the endpoint
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection endpoint returned %d: %s", e.Code, e.Message)
}

var errNoCandidates = errors.New("response has no candidates")

type gridReply struct {
	Grid [][]bool `json:"grid"`
}

// responseSchema constrains the model to {"grid": bool[4][8]}
func responseSchema() *genai.Schema {
	row := &genai.Schema{
		Type:     genai.TypeArray,
		Items:    &genai.Schema{Type: genai.TypeBoolean},
		MinItems: genai.Ptr[int64](grid.Cols),
		MaxItems: genai.Ptr[int64](grid.Cols),
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"grid": {
				Type:     genai.TypeArray,
				Items:    row,
				MinItems: genai.Ptr[int64](grid.Rows),
				MaxItems: genai.Ptr[int64](grid.Rows),
			},
		},
		Required: []string{"grid"},
	}
}

func (c *Client) newClient(ctx context.Context) (*genai.Client, error) {
	version := c.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     c.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.HTTP,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    c.Endpoint,
			APIVersion: version,
		},
	})
}

// Fetch performs one detection request and validates the reply
func (c *Client) Fetch(ctx context.Context, p camera.Payload) (grid.Grid, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	client, err := c.newClient(ctx)
	if err != nil {
		return grid.Empty(), fmt.Errorf("detection client: %w", err)
	}

	mime := p.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	model := c.Model
	if model == "" {
		model = DefaultModel
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(p.Data, mime),
			genai.NewPartFromText(Prompt),
		}, genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return grid.Empty(), &StatusError{Code: apiErr.Code, Message: apiErr.Message}
		}
		return grid.Empty(), fmt.Errorf("detection request: %w", err)
	}

	return parse(resp)
}

func parse(resp *genai.GenerateContentResponse) (grid.Grid, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return grid.Empty(), errNoCandidates
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return grid.Empty(), errNoCandidates
	}

	var text strings.Builder
	for _, part := range content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var reply gridReply
	if err := json.Unmarshal([]byte(stripFence(text.String())), &reply); err != nil {
		return grid.Empty(), fmt.Errorf("decode grid: %w", err)
	}
	return grid.FromRows(reply.Grid)
}

// stripFence removes a ```json fence some models wrap around JSON output
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Detect is Fetch with the empty-grid fallback
func (c *Client) Detect(ctx context.Context, p camera.Payload) grid.Grid {
	start := time.Now()
	g, err := c.Fetch(ctx, p)
	if err != nil {
		debug.Warn("detect", "detection failed, using empty grid", "err", err)
		return grid.Empty()
	}
	debug.Log("detect", "grid detected", "cells", g.Count(), "took", time.Since(start))
	return g
}
