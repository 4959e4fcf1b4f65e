package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	identityfile "github.com/bnema/catq/internal/adapters/identity/file"
	"github.com/bnema/catq/internal/adapters/identity/memory"
	"github.com/bnema/catq/internal/adapters/render/quiz"
	"github.com/bnema/catq/internal/application"
	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/metrics"
	"github.com/bnema/catq/internal/ports"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

type takeOptions struct {
	user      string
	altScreen bool
	itemCap   int
}

func newTakeCmd(app *app) *cobra.Command {
	var opts takeOptions

	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take an adaptive test as the logged-in test-taker",
		Long:  "take follows the identity saved by `catq login`: logging in as someone else starts a new session, logging out ends it. --user pins the identity for this run instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTake(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "Take the test as this identity instead of the logged-in one")
	cmd.Flags().BoolVar(&opts.altScreen, "alt-screen", true, "Render in the terminal's alternate screen")
	cmd.Flags().IntVar(&opts.itemCap, "max-items", domain.DefaultItemCap, "Stop after this many answered questions")

	return cmd
}

func runTake(cmd *cobra.Command, app *app, opts takeOptions) error {
	if opts.itemCap <= 0 {
		return fmt.Errorf("--max-items must be positive, got %d", opts.itemCap)
	}

	logger, closer, err := app.newLogger()
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()

	source, err := takeIdentitySource(app, opts.user, logger)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	controller := application.NewSessionController(
		app.assessmentClient(logger),
		source,
		application.WithLogger(logger),
		application.WithRecorder(recorder),
		application.WithItemCap(opts.itemCap),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("start session controller: %w", err)
	}
	defer controller.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	if app.config.MetricsAddr != "" {
		listener, err := net.Listen("tcp", app.config.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen for metrics: %w", err)
		}
		serveMetrics(groupCtx, group, listener, recorder, logger)
	}

	group.Go(func() error {
		defer cancel()
		return app.runQuiz(groupCtx, controller, quizOptions(cmd, opts))
	})

	return group.Wait()
}

func takeIdentitySource(app *app, user string, logger logr.Logger) (ports.IdentitySource, error) {
	if user = strings.TrimSpace(user); user != "" {
		return memory.New(domain.Identity(user)), nil
	}

	source, err := identityfile.NewStore(app.config.IdentityPath, identityfile.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	return source, nil
}

func serveMetrics(ctx context.Context, group *errgroup.Group, listener net.Listener, recorder *metrics.Recorder, logger logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group.Go(func() error {
		logger.Info("Serving metrics.", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// quizOptions leaves the process's own terminal to bubbletea so it can
// switch it to raw mode.
func quizOptions(cmd *cobra.Command, opts takeOptions) quiz.Options {
	options := quiz.Options{AltScreen: opts.altScreen}
	if in := cmd.InOrStdin(); in != io.Reader(os.Stdin) {
		options.Input = in
	}
	if out := cmd.OutOrStdout(); out != io.Writer(os.Stdout) {
		options.Output = out
	}
	return options
}
