package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/municipio/pagecms"
	"github.com/municipio/pagecms/cmd/pagecms/internal/bootstrap"
	markdowncmd "github.com/municipio/pagecms/internal/commands/markdown"
	pagescmd "github.com/municipio/pagecms/internal/commands/pages"
	previewscmd "github.com/municipio/pagecms/internal/commands/previews"
	"github.com/municipio/pagecms/internal/storage"
)

const shutdownTimeout = 30 * time.Second

var runtimeBuilder = bootstrap.Build

var stdout io.Writer = os.Stdout

var errUsage = errors.New("usage: pagecms [-env-file path] <migrate|sweep|serve-scheduler|purge-previews|import> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("pagecms: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("pagecms", flag.ContinueOnError)
	envFile := global.String("env-file", ".env", "Dotenv file loaded before reading PAGECMS_ variables")
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return errUsage
	}
	base := bootstrap.Options{EnvFile: *envFile}

	switch rest[0] {
	case "migrate":
		return runMigrate(ctx, base, rest[1:])
	case "sweep":
		return runSweep(ctx, base, rest[1:])
	case "serve-scheduler":
		return runServeScheduler(ctx, base, rest[1:])
	case "purge-previews":
		return runPurgePreviews(ctx, base, rest[1:])
	case "import":
		return runImport(ctx, base, rest[1:])
	default:
		return fmt.Errorf("unknown command %q: %w", rest[0], errUsage)
	}
}

func withRuntime(ctx context.Context, opts bootstrap.Options, fn func(*bootstrap.Runtime) error) error {
	rt, err := runtimeBuilder(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			rt.Logger.Warn("cli.shutdown_failed", "error", err)
		}
	}()
	return fn(rt)
}

func runMigrate(ctx context.Context, opts bootstrap.Options, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRuntime(ctx, opts, func(rt *bootstrap.Runtime) error {
		if err := storage.Migrate(ctx, rt.DB); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "schema migrated (%s)\n", rt.Config.Storage.Driver)
		return nil
	})
}

func runSweep(ctx context.Context, opts bootstrap.Options, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRuntime(ctx, opts, func(rt *bootstrap.Runtime) error {
		handler := rt.Module.Container().PageCommands().Sweep
		if err := handler.Execute(ctx, pagescmd.SweepSchedulesCommand{}); err != nil {
			return err
		}
		result := handler.LastResult()
		fmt.Fprintf(stdout, "published=%d unpublished=%d skipped=%d failed=%d\n",
			len(result.Published), len(result.Unpublished), len(result.Skipped), len(result.Failed))
		return nil
	})
}

func runPurgePreviews(ctx context.Context, opts bootstrap.Options, args []string) error {
	fs := flag.NewFlagSet("purge-previews", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRuntime(ctx, opts, func(rt *bootstrap.Runtime) error {
		handler := rt.Module.Container().PreviewCommands()
		if err := handler.Execute(ctx, previewscmd.PurgeExpiredPreviewsCommand{}); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "removed=%d\n", handler.LastRemoved())
		return nil
	})
}

func runServeScheduler(ctx context.Context, opts bootstrap.Options, args []string) error {
	fs := flag.NewFlagSet("serve-scheduler", flag.ContinueOnError)
	sweepCron := fs.String("sweep-cron", "", "Override PAGECMS_SCHEDULER_SWEEP_CRON")
	purgeCron := fs.String("purge-cron", "", "Override PAGECMS_SCHEDULER_PURGE_CRON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.Configure = func(cfg *pagecms.Config) {
		cfg.Scheduler.Enabled = true
		cfg.Commands.Enabled = true
		cfg.Commands.AutoRegisterCron = true
		if *sweepCron != "" {
			cfg.Scheduler.SweepCron = *sweepCron
		}
		if *purgeCron != "" {
			cfg.Scheduler.PurgeCron = *purgeCron
		}
	}
	return withRuntime(ctx, opts, func(rt *bootstrap.Runtime) error {
		if !rt.Module.StartScheduler() {
			return errors.New("no cron runner configured")
		}
		rt.Logger.Info("cli.scheduler.serving",
			"sweep_cron", rt.Config.Scheduler.SweepCron,
			"purge_cron", rt.Config.Scheduler.PurgeCron,
		)
		<-ctx.Done()
		return nil
	})
}

func runImport(ctx context.Context, opts bootstrap.Options, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	contentDir := fs.String("content-dir", "", "Markdown content root (defaults to PAGECMS_MARKDOWN_CONTENT_DIR)")
	directory := fs.String("directory", ".", "Directory to import, relative to the content root")
	tenant := fs.String("tenant", "", "Tenant UUID or municipality code")
	actor := fs.String("actor", "", "Actor UUID recorded on imported pages")
	language := fs.String("language", "", "Language applied when neither path nor front matter declares one")
	dryRun := fs.Bool("dry-run", false, "Report changes without writing pages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tenantID, err := bootstrap.ParseTenant(*tenant)
	if err != nil {
		return err
	}
	actorID, err := bootstrap.ParseUUID(*actor)
	if err != nil {
		return fmt.Errorf("parse actor: %w", err)
	}

	opts.Configure = func(cfg *pagecms.Config) {
		cfg.Markdown.Enabled = true
		cfg.Commands.Enabled = true
		if *contentDir != "" {
			cfg.Markdown.ContentDir = *contentDir
		}
	}
	return withRuntime(ctx, opts, func(rt *bootstrap.Runtime) error {
		handlers := rt.Module.Container().MarkdownCommands()
		if handlers == nil {
			return errors.New("markdown import is not configured")
		}
		cmd := markdowncmd.ImportDirectoryCommand{
			Directory: *directory,
			TenantID:  tenantID,
			Actor:     actorID,
			Language:  *language,
			DryRun:    *dryRun,
		}
		if err := handlers.Import.Execute(ctx, cmd); err != nil {
			return err
		}
		if result := handlers.Import.LastResult(); result != nil {
			fmt.Fprintf(stdout, "created=%d updated=%d skipped=%d errors=%d\n",
				len(result.CreatedPageIDs), len(result.UpdatedPageIDs), len(result.SkippedPageIDs), len(result.Errors))
		}
		return nil
	})
}
