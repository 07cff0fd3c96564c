package detect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gridbeat/camera"
	"gridbeat/grid"
)

var payload = camera.Payload{Data: []byte{0xff, 0xd8, 0xff, 0xd9}, MIMEType: "image/jpeg"}

// wireRequest is the subset of a generateContent body the tests inspect
type wireRequest struct {
	Contents []struct {
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MIMEType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMIMEType string          `json:"responseMimeType"`
		ResponseSchema   json.RawMessage `json:"responseSchema"`
	} `json:"generationConfig"`
}

func envelope(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			}},
		},
	})
	return string(b)
}

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{
		Endpoint:   srv.URL,
		APIVersion: "v1beta",
		Model:      "test-model",
		APIKey:     "k",
		HTTP:       srv.Client(),
		Timeout:    time.Second,
	}
}

func TestFetchSuccess(t *testing.T) {
	var got wireRequest
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/test-model:generateContent") {
			t.Errorf("path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, envelope(`{"grid":[
			[true,false,false,false,false,false,false,false],
			[false,false,false,false,false,false,false,false],
			[false,false,true,false,false,false,true,false],
			[true,false,false,false,true,false,false,false]]}`))
	})

	g, err := c.Fetch(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !g[0][0] || !g[2][2] || !g[2][6] || !g[3][0] || !g[3][4] || g.Count() != 5 {
		t.Fatalf("unexpected grid:\n%s", g)
	}

	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	parts := got.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("image part missing: %+v", parts[0])
	}
	if parts[0].InlineData.Data != base64.StdEncoding.EncodeToString(payload.Data) {
		t.Fatal("image not base64 encoded")
	}
	if parts[1].Text != Prompt {
		t.Fatal("prompt not sent")
	}
	if got.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Fatalf("responseMimeType %q", got.GenerationConfig.ResponseMIMEType)
	}
	if !strings.Contains(string(got.GenerationConfig.ResponseSchema), `"grid"`) {
		t.Fatalf("response schema missing grid: %s", got.GenerationConfig.ResponseSchema)
	}
}

func TestFetchFencedJSON(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		rows := strings.Repeat(`[false,false,false,false,false,false,false,true],`, 3) +
			`[false,false,false,false,false,false,false,true]`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, envelope("```json\n{\"grid\":["+rows+"]}\n```"))
	})
	g, err := c.Fetch(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if g.Count() != 4 {
		t.Fatalf("count = %d", g.Count())
	}
}

func TestFetchFailures(t *testing.T) {
	jsonBody := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		}
	}
	tests := []struct {
		name  string
		h     http.HandlerFunc
		check func(error) bool
	}{
		{"server error", jsonBody(http.StatusInternalServerError,
			`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`),
			func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.Code == 500
			}},
		{"bad envelope", jsonBody(http.StatusOK, "<html>"), nil},
		{"no candidates", jsonBody(http.StatusOK, `{"candidates":[]}`),
			func(err error) bool { return errors.Is(err, errNoCandidates) }},
		{"invalid grid json", jsonBody(http.StatusOK, envelope(`{"grid": nope}`)), nil},
		{"wrong row count", jsonBody(http.StatusOK,
			envelope(`{"grid":[[true,false,false,false,false,false,false,false]]}`)),
			func(err error) bool {
				var sm *grid.ShapeMismatchError
				return errors.As(err, &sm)
			}},
		{"short row", jsonBody(http.StatusOK, envelope(`{"grid":[[true],[false],[false],[false]]}`)),
			func(err error) bool {
				var sm *grid.ShapeMismatchError
				return errors.As(err, &sm)
			}},
		{"missing grid", jsonBody(http.StatusOK, envelope(`{"cells":[]}`)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, tt.h)
			g, err := c.Fetch(context.Background(), payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.check != nil && !tt.check(err) {
				t.Fatalf("unexpected error type: %v", err)
			}
			if g != grid.Empty() {
				t.Fatal("failed fetch should return an empty grid")
			}

			if got := c.Detect(context.Background(), payload); got != grid.Empty() {
				t.Fatal("Detect should fall back to an empty grid")
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.Timeout = 20 * time.Millisecond

	start := time.Now()
	if _, err := c.Fetch(context.Background(), payload); err == nil {
		t.Fatal("expected timeout error")
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("timeout not honoured, took %v", took)
	}
}
