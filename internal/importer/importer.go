// Package importer turns web pages, PDFs and JSON catalogs into recipes.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
)

// ErrNoRecipe is returned when a source holds nothing that looks like a recipe.
var ErrNoRecipe = errors.New("no recipe found")

// ErrUnsupported is returned for content types the importer cannot read.
var ErrUnsupported = errors.New("unsupported content type")

const maxDocumentSize = 10 << 20

// Importer fetches and parses recipe documents.
type Importer struct {
	client *remote.Client
	logger *slog.Logger
}

// New creates an Importer. Options are passed to the underlying HTTP client.
func New(logger *slog.Logger, opts ...remote.ClientOption) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]remote.ClientOption{remote.WithLogger(logger)}, opts...)
	return &Importer{client: remote.NewClient("", opts...), logger: logger}
}

// FetchURL downloads u and parses it by content type. A JSON document is read
// as a catalog and may yield several recipes.
func (im *Importer) FetchURL(ctx context.Context, u string) ([]recipes.Recipe, error) {
	body, contentType, err := im.client.Get(ctx, "import recipe", u, maxDocumentSize)
	if err != nil {
		return nil, err
	}
	kind := kindFromContentType(contentType)
	if kind == "" {
		kind = kindFromName(u)
	}
	im.logger.Debug("importing document", "url", u, "content_type", contentType, "kind", kind, "bytes", len(body))

	rs, err := parse(kind, body)
	if err != nil {
		return nil, err
	}
	for i := range rs {
		if rs[i].Image == "" {
			continue
		}
		rs[i].Image = absoluteURL(u, rs[i].Image)
	}
	return rs, nil
}

// ReadFile parses a local file by extension.
func (im *Importer) ReadFile(path string) ([]recipes.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	kind := kindFromName(path)
	if kind == "" {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	return parse(kind, data)
}

func parse(kind string, data []byte) ([]recipes.Recipe, error) {
	var (
		rec recipes.Recipe
		err error
	)
	switch kind {
	case "html":
		rec, err = ParseHTML(bytes.NewReader(data))
	case "pdf":
		rec, err = ParsePDF(data)
	case "text":
		rec, err = ParseText(string(data))
	case "json":
		rs, err := remote.DecodeCatalog(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoRecipe, err)
		}
		return rs, nil
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	return []recipes.Recipe{rec}, nil
}

func kindFromContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch {
	case mt == "text/html" || mt == "application/xhtml+xml":
		return "html"
	case mt == "application/pdf":
		return "pdf"
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		return "json"
	case mt == "text/plain":
		return "text"
	}
	return ""
}

func kindFromName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	case ".json":
		return "json"
	case ".txt", ".md":
		return "text"
	}
	return ""
}

// absoluteURL resolves ref against the page it was found on.
func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
