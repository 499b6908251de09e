package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Brownie44l1/imagenet-api/internal/classifier"
	"github.com/Brownie44l1/imagenet-api/internal/config"
	"github.com/Brownie44l1/imagenet-api/internal/imagesource"
	"github.com/Brownie44l1/imagenet-api/internal/logging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Options holds the flags of the classify command
type Options struct {
	ConfigPath string
	Sample     bool
	TopK       int
	JSON       bool
	Quiet      bool
}

var opts Options

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "classify [image_path|url]...",
	Short:   "Top-5 ImageNet classification of local or remote images",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !opts.Sample {
			return errors.New("provide at least one image path or URL, or --sample")
		}
		cmd.SilenceUsage = true
		return run(cmd.Context(), cmd.OutOrStdout(), args, opts)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to a YAML/JSON config file")
	rootCmd.Flags().BoolVarP(&opts.Sample, "sample", "s", false, "Classify the bundled sample image")
	rootCmd.Flags().IntVarP(&opts.TopK, "top", "k", 0, "Number of predictions to show (default from config)")
	rootCmd.Flags().BoolVar(&opts.JSON, "json", false, "Print results as JSON")
	rootCmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Hide download progress")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, args []string, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.TopK > 0 {
		cfg.TopK = opts.TopK
	}
	log := logging.Must(cfg.Log.Level, cfg.Log.Format)

	clf, err := classifier.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer clf.Close()

	// Local files are readable anyway, so local hosts are too.
	client := imagesource.NewClient(cfg.Fetch.Timeout, true)
	sources := make([]imagesource.Source, 0, len(args)+1)
	if opts.Sample {
		sources = append(sources, imagesource.Sample{Path: cfg.Sample.Path})
	}
	for _, arg := range args {
		sources = append(sources, sourceFor(arg, client, opts.Quiet))
	}

	var failed int
	for _, src := range sources {
		result, err := clf.ClassifySource(ctx, src)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "🚨 %s: %v\n", src, err)
			continue
		}
		if opts.JSON {
			err = renderJSON(out, src.String(), result)
		} else {
			err = renderTable(out, src.String(), result)
		}
		if err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(sources))
	}
	return nil
}

func sourceFor(arg string, client *http.Client, quiet bool) imagesource.Source {
	if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
		return imagesource.File{Path: arg}
	}
	src := imagesource.URL{URL: arg, Client: client}
	if !quiet {
		src.Progress = func(total int64) io.Writer {
			return progressbar.NewOptions64(total,
				progressbar.OptionSetDescription("⬇️  Downloading"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)
		}
	}
	return src
}
