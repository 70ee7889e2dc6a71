// Command corpusexpand grows the offline sentence corpora with an LLM.
//
// For every requested language it loads <dir>/<lang>.yaml (or builds one from
// the embedded pack when the file is missing), asks the configured LLM for
// new items per tier until each tier holds -target items, and writes the file
// back. Items already present are never repeated.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/hearcoach/internal/app"
	"github.com/MrWong99/hearcoach/internal/config"
	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/observe"
	"github.com/MrWong99/hearcoach/internal/practice"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "hearcoach.yaml", "configuration file naming the LLM provider")
	dir := flag.String("dir", "corpus", "directory holding <lang>.yaml corpus files")
	target := flag.Int("target", corpus.DefaultTargetPerTier, "items per tier after expansion")
	perCall := flag.Int("per-call", corpus.DefaultPerCall, "items requested per LLM call")
	langs := flag.String("langs", "zh,en", "comma-separated languages to expand")
	model := flag.String("model", "gpt-4.1-mini", "LLM model overriding the configured one; empty keeps it")
	pace := flag.Duration("pace", corpus.DefaultPace, "pause between LLM calls")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	languages, err := parseLanguages(*langs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corpusexpand: %v\n", err)
		return 2
	}

	// ── LLM provider ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corpusexpand: %v\n", err)
		return 1
	}
	if *model != "" {
		cfg.Providers.LLM.Model = *model
	}
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	llms, err := app.BuildLLMs(cfg, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corpusexpand: %v\n", err)
		return 1
	}
	provider := app.ComposeLLM(llms, app.FallbackConfig(observe.DefaultMetrics()))
	if provider == nil {
		fmt.Fprintln(os.Stderr, "corpusexpand: no LLM provider configured (providers.llm)")
		return 1
	}

	// ── Expand ────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	exp := corpus.NewExpander(provider, corpus.WithPerCall(*perCall), corpus.WithPace(*pace))
	if err := expandDir(ctx, exp, *dir, languages, *target); err != nil {
		slog.Error("expansion failed", "err", err)
		return 1
	}
	slog.Info("expansion finished", "dir", *dir, "elapsed", time.Since(start).Round(time.Second))
	return 0
}

// parseLanguages splits a comma-separated language list.
func parseLanguages(s string) ([]practice.Language, error) {
	var out []practice.Language
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lang, err := practice.ParseLanguage(part)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	if len(out) == 0 {
		return nil, errors.New("no languages given")
	}
	return out, nil
}

// loadOrBuild returns the corpus file of lang in dir, or the augmented
// embedded pack when no file exists yet.
func loadOrBuild(dir string, lang practice.Language, target int) (*corpus.Corpus, error) {
	path := corpus.FileName(dir, lang)
	c, err := corpus.LoadFile(path, lang)
	if err == nil {
		slog.Info("corpus loaded", "path", path, "items", c.Len())
		return c, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	c, err = corpus.Builtin(lang, target, corpus.DefaultSeed)
	if err != nil {
		return nil, err
	}
	slog.Info("corpus built from embedded pack", "language", lang, "items", c.Len())
	return c, nil
}

// expandDir expands every language's corpus concurrently and saves each file.
// Corpora that were expanded successfully are saved even when another
// language failed.
func expandDir(ctx context.Context, exp *corpus.Expander, dir string, langs []practice.Language, target int) error {
	corpora := make([]*corpus.Corpus, 0, len(langs))
	for _, lang := range langs {
		c, err := loadOrBuild(dir, lang, target)
		if err != nil {
			return err
		}
		corpora = append(corpora, c)
	}

	expandErr := exp.ExpandAll(ctx, corpora, target)

	var errs []error
	if expandErr != nil {
		errs = append(errs, expandErr)
	}
	for _, c := range corpora {
		path := corpus.FileName(dir, c.Language)
		if err := corpus.SaveFile(path, c); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Info("corpus saved", "path", path, "items", c.Len())
	}
	return errors.Join(errs...)
}
