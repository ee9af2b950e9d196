package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/jteuber/blpl/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"
)

var (
	appName = "blpl-demo"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := makeApp().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSha
	app.Usage = "run a generator-driven demo pipeline and report its throughput"
	app.Flags = []cli.Flag{
		cli.DurationFlag{
			Name:   "source-interval",
			Value:  10 * time.Millisecond,
			EnvVar: "SOURCE_INTERVAL",
			Usage:  "The pace of the generator-driven source stage",
		},
		cli.DurationFlag{
			Name:   "run-for",
			Value:  0,
			EnvVar: "RUN_FOR",
			Usage:  "How long to run the pipeline before shutting down (0: run until SIGINT)",
		},
		cli.BoolFlag{
			Name:   "wait",
			EnvVar: "WAIT",
			Usage:  "Connect the stages with waiting pipes instead of overwriting ones",
		},
		cli.IntFlag{
			Name:   "pprof-port",
			Value:  6060,
			EnvVar: "PPROF_PORT",
			Usage:  "The port for exposing pprof endpoints",
		},
	}
	app.Action = runMain
	return app
}

// demoConfig encapsulates the settings for the demo pipeline run.
type demoConfig struct {
	// The pace of the source stage.
	SourceInterval time.Duration

	// How long to run before shutting down; zero means until a signal
	// arrives.
	RunFor time.Duration

	// Whether the stages are connected with waiting pipes.
	WaitForSlowestFilter bool

	// A clock instance for pacing the source. If not specified, the
	// default wall-clock will be used instead.
	Clock clock.Clock

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *demoConfig) validate() error {
	var err error
	if cfg.SourceInterval <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for source interval"))
	}
	if cfg.RunFor < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for run duration"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	return err
}

func runMain(appCtx *cli.Context) error {
	cfg := demoConfig{
		SourceInterval:       appCtx.Duration("source-interval"),
		RunFor:               appCtx.Duration("run-for"),
		WaitForSlowestFilter: appCtx.Bool("wait"),
		Clock:                clock.WallClock,
		Logger:               logger,
	}
	if err := cfg.validate(); err != nil {
		return xerrors.Errorf("demo pipeline: config validation failed: %w", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Start pprof server
	pprofListener, err := net.Listen("tcp", fmt.Sprintf(":%d", appCtx.Int("pprof-port")))
	if err != nil {
		return err
	}
	defer func() { _ = pprofListener.Close() }()

	go func() {
		logger.WithField("port", appCtx.Int("pprof-port")).Info("listening for pprof requests")
		srv := new(http.Server)
		_ = srv.Serve(pprofListener)
	}()

	// Start signal watcher
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGHUP)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	if cfg.RunFor > 0 {
		go func() {
			select {
			case <-cfg.Clock.After(cfg.RunFor):
				cancelFn()
			case <-ctx.Done():
			}
		}()
	}

	return runPipeline(ctx, cfg)
}

// runPipeline assembles and drives the demo pipeline until ctx expires:
// a paced counting source, a squaring stage and a formatting stage.
func runPipeline(ctx context.Context, cfg demoConfig) error {
	source := &pacedCounter{clk: cfg.Clock, interval: cfg.SourceInterval}
	square := pipeline.NewFilterFunc(func(in int64) int64 { return in * in })
	format := pipeline.NewFilterFunc(func(in int64) string {
		return fmt.Sprintf("%d", in)
	})

	profiler := pipeline.NewProfilingListener()
	sourceFilter := pipeline.NewFilter[pipeline.Generator, int64](source)
	sourceFilter.SetListener(profiler)

	var p *pipeline.Pipeline[pipeline.Generator, string]
	if cfg.WaitForSlowestFilter {
		p = pipeline.ExtendWaiting(pipeline.Waiting(sourceFilter, square), format)
	} else {
		p = pipeline.ExtendDiscarding(pipeline.Discarding(sourceFilter, square), format)
	}
	p.SetLogger(cfg.Logger)

	cfg.Logger.WithFields(logrus.Fields{
		"stages":          p.Length(),
		"source_interval": cfg.SourceInterval.String(),
		"wait":            cfg.WaitForSlowestFilter,
	}).Info("starting pipeline")

	p.Start()
	defer p.Stop()

	consumed := 0
	outputs := p.OutPipe()
	for {
		select {
		case <-ctx.Done():
			cfg.Logger.WithFields(logrus.Fields{
				"outputs_consumed": consumed,
				"source_runs":      profiler.Counter(),
				"source_wall_time": profiler.WallTime().String(),
			}).Info("stopped pipeline")
			return nil
		default:
			last := outputs.BlockingPop()
			consumed++
			if consumed%100 == 0 {
				cfg.Logger.WithFields(logrus.Fields{
					"outputs_consumed": consumed,
					"last_output":      last,
				}).Info("pipeline progress")
			}
		}
	}
}

// pacedCounter is a source processor that emits an increasing count, paced
// to one value per interval.
type pacedCounter struct {
	clk      clock.Clock
	interval time.Duration
	count    int64
}

func (p *pacedCounter) Process(pipeline.Generator) int64 {
	pipeline.NewGeneratorAt(p.clk, p.clk.Now().Add(p.interval))
	p.count++
	return p.count
}

func (p *pacedCounter) Reset() {
	p.count = 0
}
