// Package proxy forwards gateway requests to the interpreter service.
package proxy

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// hopHeaders are not copied back from the upstream response.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
}

// ============================================================
// Proxy Handler
// ============================================================

type Proxy struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// New forwards to baseURL. A nil client uses one with a 60s timeout.
func New(baseURL string, client *http.Client, log *zap.Logger) *Proxy {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Proxy{baseURL: strings.TrimRight(baseURL, "/"), client: client, log: log}
}

// To forwards to a fixed upstream path.
func (p *Proxy) To(path string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return p.Forward(c, path)
	}
}

// Forward sends the request to path on the upstream, keeping the query
// string and re-encoding multipart bodies.
func (p *Proxy) Forward(c fiber.Ctx, path string) error {
	target := p.baseURL + path
	if q := string(c.Request().URI().QueryString()); q != "" {
		target += "?" + q
	}
	p.log.Debug("forwarding request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("target", target),
		zap.Int("content_length", len(c.Body())))

	contentType := c.Get(fiber.HeaderContentType)
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return p.sendMultipart(c, target)
	}
	return p.sendRaw(c, target, contentType)
}

func (p *Proxy) sendRaw(c fiber.Ctx, target, contentType string) error {
	req, err := http.NewRequestWithContext(c.Context(), c.Method(), target, bytes.NewReader(c.Body()))
	if err != nil {
		p.log.Error("build request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	return p.do(c, req)
}

func (p *Proxy) sendMultipart(c fiber.Ctx, target string) error {
	form, err := c.MultipartForm()
	if err != nil {
		p.log.Warn("invalid multipart body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, files := range form.File {
		for _, fh := range files {
			if err := copyFilePart(writer, key, fh); err != nil {
				p.log.Error("copy multipart file failed", zap.String("file", fh.Filename), zap.Error(err))
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
			}
		}
	}
	for key, values := range form.Value {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
			}
		}
	}
	if err := writer.Close(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}

	req, err := http.NewRequestWithContext(c.Context(), c.Method(), target, body)
	if err != nil {
		p.log.Error("build multipart request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return p.do(c, req)
}

func copyFilePart(w *multipart.Writer, field string, fh *multipart.FileHeader) error {
	file, err := fh.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, fh.Filename))
	if ct := fh.Header.Get(fiber.HeaderContentType); ct != "" {
		h.Set(fiber.HeaderContentType, ct)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (p *Proxy) do(c fiber.Ctx, req *http.Request) error {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("upstream unreachable", zap.String("target", req.URL.String()), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Warn("read upstream response failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if len(values) > 0 && !hopHeaders[key] {
			c.Set(key, values[0])
		}
	}
	c.Status(resp.StatusCode)
	return c.Send(data)
}
