package proxy

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method      string
	path        string
	query       string
	contentType string
	auth        string
	body        []byte
	fileName    string
	fileBody    string
	field       string
}

// upstream hands each request it receives to the returned channel.
func upstream(t *testing.T) (*httptest.Server, <-chan seen) {
	t.Helper()
	ch := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got seen
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.contentType = r.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")

		if strings.HasPrefix(got.contentType, "multipart/form-data") {
			if f, fh, err := r.FormFile("file"); err == nil {
				data, _ := io.ReadAll(f)
				got.fileName, got.fileBody = fh.Filename, string(data)
			}
			got.field = r.FormValue("sheet_name")
		} else {
			got.body, _ = io.ReadAll(r.Body)
		}

		ch <- got

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "interpreter")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestForwardRaw(t *testing.T) {
	srv, requests := upstream(t)

	app := fiber.New()
	app.Post("/api/v1/interpret", New(srv.URL+"/", nil, nil).To("/interpret"))

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/interpret?unmapped=true", strings.NewReader(`{"views":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer t")

	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "interpreter", resp.Header.Get("X-Upstream"))

	got := <-requests

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/interpret", got.path)
	assert.Equal(t, "unmapped=true", got.query)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "Bearer t", got.auth)
	assert.Equal(t, `{"views":[]}`, string(got.body))
}

func TestForwardMultipart(t *testing.T) {
	srv, requests := upstream(t)

	app := fiber.New()
	app.Post("/svg", New(srv.URL, nil, nil).To("/interpret/svg"))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "plan.svg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("<svg/>"))
	require.NoError(t, w.WriteField("sheet_name", "A-101"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/svg", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	got := <-requests
	assert.Equal(t, "/interpret/svg", got.path)
	assert.Equal(t, "plan.svg", got.fileName)
	assert.Equal(t, "<svg/>", got.fileBody)
	assert.Equal(t, "A-101", got.field)
}

func TestUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	app := fiber.New()
	app.Get("/x", New(url, nil, nil).To("/sessions"))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}
