package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/iProgramme/AI-shouban/internal/batch"
	"github.com/iProgramme/AI-shouban/internal/cli"
	"github.com/iProgramme/AI-shouban/internal/feed"
	"github.com/iProgramme/AI-shouban/internal/handler"
	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/iProgramme/AI-shouban/internal/page"
	"github.com/iProgramme/AI-shouban/internal/param"
	"github.com/iProgramme/AI-shouban/internal/prompt"
	"github.com/iProgramme/AI-shouban/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Getenv func(string) string

func Setup(ctx context.Context) *do.Injector {
	return SetupWithEnv(ctx, os.Getenv)
}

func SetupWithEnv(ctx context.Context, getenv Getenv) *do.Injector {
	log := log.FromContextOrDiscard(ctx)
	env := func(key, def string) string {
		return lo.Ternary(getenv(key) != "", getenv(key), def)
	}

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	bucket := getenv("BUCKET")
	distribution := getenv("DISTRIBUTION")

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[image.Generator](injector, image.NewGeminiGenerator)
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if bucket != "" {
			return store.NewS3Uploader(i)
		}
		return store.NewFileUploader(i)
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if distribution != "" {
			return store.NewCloudFrontInvalidator(i)
		}
		return store.NopInvalidator{}, nil
	})
	do.Provide[feed.Source](injector, func(i *do.Injector) (feed.Source, error) {
		if bucket != "" {
			return feed.NewS3Source(i)
		}
		return feed.NewDirSource(i)
	})
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*feed.Generator](injector, feed.NewGenerator)

	do.Provide[image.Config](injector, func(i *do.Injector) (image.Config, error) {
		timeouts := image.DefaultTimeouts()
		for _, r := range image.SupportedResolutions {
			d, err := parseDuration(getenv("TIMEOUT_"+string(r)), timeouts[r])
			if err != nil {
				return image.Config{}, fmt.Errorf("TIMEOUT_%s: %w", r, err)
			}
			timeouts[r] = d
		}
		maxBytes := int64(image.DefaultMaxSourceBytes)
		if v := getenv("MAX_SOURCE_BYTES"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return image.Config{}, fmt.Errorf("MAX_SOURCE_BYTES: %w", err)
			}
			maxBytes = n
		}
		return image.Config{
			APIKey:         do.MustInvokeNamed[string](i, "api_key"),
			Endpoint:       env("API_YI_URL", image.DefaultEndpoint),
			Timeouts:       timeouts,
			MaxSourceBytes: maxBytes,
		}, nil
	})
	do.ProvideNamed[string](injector, "api_key", func(i *do.Injector) (string, error) {
		if key := getenv("API_YI_KEY"); key != "" {
			return key, nil
		}
		if path := getenv("API_YI_KEY_PARAM"); path != "" {
			return do.MustInvoke[param.Fetcher](i).Fetch(ctx, path)
		}
		return "", nil
	})
	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		if path := getenv("PROMPTS_PARAM"); path != "" {
			return do.MustInvoke[param.Fetcher](i).FetchAll(ctx, path)
		}
		return strings.Split(getenv("IMAGE_PROMPTS"), "\n"), nil
	})
	do.ProvideNamed[time.Duration](injector, "batch_delay", func(i *do.Injector) (time.Duration, error) {
		return parseDuration(getenv("BATCH_DELAY"), batch.DefaultDelay)
	})
	do.ProvideNamedValue[string](injector, "output_dir", env("OUTPUT_DIR", "."))
	do.ProvideNamedValue[string](injector, "output_prefix", env("OUTPUT_PREFIX", "NanoBananaPro"))
	do.ProvideNamedValue[string](injector, "bucket", bucket)
	do.ProvideNamedValue[string](injector, "bucket_prefix", env("BUCKET_PREFIX", "images/"))
	do.ProvideNamedValue[string](injector, "distribution", distribution)
	do.ProvideNamedValue[bool](injector, "latest_alias", bucket != "" && distribution != "")
	do.ProvideNamedValue[string](injector, "feed_link", getenv("FEED_LINK"))
	do.Provide[cli.Defaults](injector, func(i *do.Injector) (cli.Defaults, error) {
		aspect := image.AspectRatio(strings.TrimSpace(env("IMAGE_ASPECT_RATIO", string(image.AspectRatio1x1))))
		if !aspect.Valid() {
			return cli.Defaults{}, fmt.Errorf("IMAGE_ASPECT_RATIO: unsupported aspect ratio %q", aspect)
		}
		res, err := image.ParseResolution(env("IMAGE_RESOLUTION", string(image.Resolution2K)))
		if err != nil {
			return cli.Defaults{}, fmt.Errorf("IMAGE_RESOLUTION: %w", err)
		}
		return cli.Defaults{
			Prompt:      getenv("IMAGE_PROMPT"),
			AspectRatio: aspect,
			Resolution:  res,
			SourceImage: getenv("SOURCE_IMAGE"),
			BatchFile:   getenv("BATCH_FILE"),
		}, nil
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*batch.Runner](injector, batch.NewRunner)
	do.Provide[*cli.Menu](injector, cli.NewMenu)

	return injector
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
