package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"
	"time"

	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
)

const (
	Name        = "index.html"
	ContentType = "text/html; charset=utf-8"
)

//go:embed assets/gallery.html
var galleryTmpl string

type Item struct {
	Title       string
	Description string
	Link        string
	Updated     time.Time
}

type Params struct {
	Title string
	Items []Item
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(i *do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("gallery").Parse(galleryTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator").With("items", len(params.Items))
	log.Info("generating gallery page")

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
