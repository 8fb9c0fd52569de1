package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/iProgramme/AI-shouban/internal/page"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	Name        = "feed.xml"
	ContentType = "application/rss+xml"
	title       = "Nano Banana Pro Gallery"
)

// Document is one rendered file of the gallery, ready to upload.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

type Generator struct {
	source    Source
	templator *page.Templator
	link      string
	now       func() time.Time
}

func New(source Source, templator *page.Templator, link string) *Generator {
	return &Generator{source: source, templator: templator, link: link, now: time.Now}
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return New(
		do.MustInvoke[Source](i),
		do.MustInvoke[*page.Templator](i),
		do.MustInvokeNamed[string](i, "feed_link"),
	), nil
}

func (g *Generator) itemLink(key string) string {
	if g.link == "" {
		return key
	}
	return strings.TrimSuffix(g.link, "/") + "/" + strings.TrimPrefix(key, "/")
}

func (g *Generator) item(e Entry) *feeds.Item {
	desc := lo.Filter([]string{e.AspectRatio, e.Resolution, e.Mode}, func(s string, _ int) bool { return s != "" })
	if e.Size > 0 {
		desc = append(desc, fmt.Sprintf("%.2f KB", float64(e.Size)/1024))
	}
	return &feeds.Item{
		Id:          e.Key,
		Title:       lo.Ternary(e.Prompt != "", e.Prompt, e.Key),
		Description: strings.Join(desc, " | "),
		Link:        &feeds.Link{Href: g.itemLink(e.Key)},
		Updated:     e.Updated,
		Created:     e.Updated,
	}
}

// Generate renders the gallery as an RSS feed and, when a templator is set,
// an HTML index page. Items are ordered newest first.
func (g *Generator) Generate(ctx context.Context) ([]Document, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("feed")
	logger.Info("generating rss feed")

	entries, err := g.source.Entries(ctx)
	if err != nil {
		return nil, err
	}

	feed := feeds.Feed{
		Title:       title,
		Description: "Images generated with Gemini 3 Pro Image",
		Link:        &feeds.Link{Href: lo.Ternary(g.link != "", g.link, "/")},
		Updated:     g.now(),
		Items:       lo.Map(entries, func(e Entry, _ int) *feeds.Item { return g.item(e) }),
	}
	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})

	logger.Info("rendering feed", "items", len(feed.Items))
	rss, err := feed.ToRss()
	if err != nil {
		return nil, fmt.Errorf("rendering rss: %w", err)
	}
	docs := []Document{{Name: Name, ContentType: ContentType, Data: []byte(rss)}}
	if g.templator == nil {
		return docs, nil
	}

	html, err := g.templator.Template(ctx, page.Params{
		Title: title,
		Items: lo.Map(feed.Items, func(it *feeds.Item, _ int) page.Item {
			return page.Item{Title: it.Title, Description: it.Description, Link: it.Link.Href, Updated: it.Updated}
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering gallery page: %w", err)
	}
	return append(docs, Document{Name: page.Name, ContentType: page.ContentType, Data: html}), nil
}
