package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/iProgramme/AI-shouban/internal/batch"
	"github.com/iProgramme/AI-shouban/internal/feed"
	"github.com/iProgramme/AI-shouban/internal/handler"
	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/iProgramme/AI-shouban/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const editPrefix = "gemini_edited"

// Defaults are the values used when the user just presses enter.
type Defaults struct {
	Prompt      string
	AspectRatio image.AspectRatio
	Resolution  image.Resolution
	SourceImage string
	BatchFile   string
}

type Handler interface {
	Handle(context.Context, handler.Input) (handler.Output, error)
}

type Runner interface {
	Run(context.Context, []batch.Task) (batch.Summary, error)
}

type FeedGenerator interface {
	Generate(context.Context) ([]feed.Document, error)
}

type Menu struct {
	handler  Handler
	runner   Runner
	feed     FeedGenerator
	uploader store.Uploader
	defaults Defaults
	in       *bufio.Reader
	out      io.Writer
}

func New(h Handler, r Runner, f FeedGenerator, u store.Uploader, defaults Defaults, in io.Reader, out io.Writer) *Menu {
	return &Menu{h, r, f, u, defaults, bufio.NewReader(in), out}
}

func NewMenu(i *do.Injector) (*Menu, error) {
	return New(
		do.MustInvoke[*handler.Handler](i),
		do.MustInvoke[*batch.Runner](i),
		do.MustInvoke[*feed.Generator](i),
		do.MustInvoke[store.Uploader](i),
		do.MustInvoke[Defaults](i),
		os.Stdin,
		os.Stdout,
	), nil
}

func (m *Menu) ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(m.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(m.out, "%s: ", question)
	}
	line, err := m.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return lo.Ternary(strings.TrimSpace(line) != "", strings.TrimSpace(line), def), nil
}

// Run shows the menu once and performs the chosen action.
func (m *Menu) Run(ctx context.Context) error {
	fmt.Fprintln(m.out, "Gemini 3 Pro Image")
	fmt.Fprintf(m.out, "  prompt:       %s\n", lo.Ternary(m.defaults.Prompt != "", m.defaults.Prompt, "(random preset)"))
	fmt.Fprintf(m.out, "  aspect ratio: %s\n", m.defaults.AspectRatio)
	fmt.Fprintf(m.out, "  resolution:   %s\n", m.defaults.Resolution)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  1. generate a single image (default)")
	fmt.Fprintln(m.out, "  2. batch generation")
	fmt.Fprintln(m.out, "  3. edit an image")
	fmt.Fprintln(m.out, "  4. publish gallery feed")
	fmt.Fprintln(m.out, "  0. exit")

	choice, err := m.ask("option", "1")
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		return m.single(ctx)
	case "2":
		return m.batch(ctx)
	case "3":
		return m.edit(ctx)
	case "4":
		return m.publishFeed(ctx)
	case "0":
		fmt.Fprintln(m.out, "bye")
		return nil
	default:
		fmt.Fprintf(m.out, "unknown option %q, running the default mode\n", choice)
		return m.single(ctx)
	}
}

func (m *Menu) single(ctx context.Context) error {
	return m.generate(ctx, handler.Input{
		Prompt:      m.defaults.Prompt,
		AspectRatio: m.defaults.AspectRatio,
		Resolution:  m.defaults.Resolution,
	})
}

func (m *Menu) edit(ctx context.Context) error {
	source, err := m.ask("source image", m.defaults.SourceImage)
	if err != nil {
		return err
	}
	if source == "" {
		err := &image.Error{Reason: image.ReasonSourceNotFound, Detail: "edit mode needs a source image"}
		m.reportFailure(err)
		return err
	}
	p, err := m.ask("edit prompt", m.defaults.Prompt)
	if err != nil {
		return err
	}
	return m.generate(ctx, handler.Input{
		Prompt:      p,
		AspectRatio: m.defaults.AspectRatio,
		Resolution:  m.defaults.Resolution,
		SourcePaths: []string{source},
		Prefix:      editPrefix,
	})
}

func (m *Menu) generate(ctx context.Context, input handler.Input) error {
	out, err := m.handler.Handle(ctx, input)
	if err != nil {
		m.reportFailure(err)
		return err
	}
	fmt.Fprintf(m.out, "saved %s (%.2f KB) in %s\n", out.Location, float64(out.Size)/1024, out.Elapsed.Round(time.Millisecond))
	return nil
}

func (m *Menu) reportFailure(err error) {
	var e *image.Error
	if !errors.As(err, &e) {
		fmt.Fprintf(m.out, "failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "failed (%s): %s\n", e.Reason, e.Error())
	switch e.Kind() {
	case image.KindValidation:
		fmt.Fprintln(m.out, "check the prompt, aspect ratio, resolution and source image path")
	case image.KindTransport:
		fmt.Fprintln(m.out, "check the api key, endpoint and network connection")
	}
}

func (m *Menu) batch(ctx context.Context) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("cli")

	tasks := batch.DefaultTasks()
	if m.defaults.BatchFile != "" {
		loaded, err := batch.LoadTasks(m.defaults.BatchFile)
		if err != nil {
			return err
		}
		tasks = loaded
	}
	logger.Info("running batch", "tasks", len(tasks))

	summary, err := m.runner.Run(ctx, tasks)
	for n, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(m.out, "task %d/%d failed: %v\n", n+1, summary.Total, r.Err)
		} else {
			fmt.Fprintf(m.out, "task %d/%d saved %s\n", n+1, summary.Total, r.Output.Location)
		}
	}
	fmt.Fprintf(m.out, "batch finished: %d/%d succeeded\n", summary.Succeeded, summary.Total)
	return err
}

func (m *Menu) publishFeed(ctx context.Context) error {
	docs, err := m.feed.Generate(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		art, err := m.uploader.Upload(ctx, store.UploadParams{
			Name:        doc.Name,
			Data:        doc.Data,
			ContentType: doc.ContentType,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "published %s\n", art.Location)
	}
	return nil
}
