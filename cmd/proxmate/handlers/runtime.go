package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/proxmate/internal/config"
	"github.com/imamik/proxmate/internal/platform/proxmox"
	"github.com/imamik/proxmate/internal/platform/ssh"
	"github.com/imamik/proxmate/internal/provisioning"
	"github.com/imamik/proxmate/internal/ui"
	"github.com/imamik/proxmate/internal/ui/tui"
	"github.com/imamik/proxmate/internal/util/async"
)

// Options holds the global command line flags.
type Options struct {
	ConfigPath  string
	Debug       bool
	MetricsFile string

	// Dashboard replaces line output with the live dashboard.
	Dashboard bool

	observer provisioning.Observer
}

// Factory function variables - can be replaced in tests.
var (
	loadDotEnv = func() { _ = godotenv.Load() }
	loadConfig = config.LoadFile

	// Piped output gets timestamped log lines with every event.
	newObserver = func(opts Options) provisioning.Observer {
		if !isTerminal() {
			return provisioning.NewConsoleObserver()
		}
		return ui.NewStdoutConsole(opts.Debug)
	}

	runDashboard = tui.Run
	isTerminal   = func() bool { return ui.IsTerminal(os.Stdout) }

	newAPIClient = func(cfg *config.Config, opts Options, observer provisioning.Observer, reg prometheus.Registerer) proxmox.API {
		return proxmox.NewClient(cfg.APIURL, cfg.Username,
			proxmox.WithInsecureTLS(!cfg.VerifySSL),
			proxmox.WithPasswordSource(ui.PasswordSource(cfg.Username)),
			proxmox.WithTokenCache(proxmox.NewFileTokenCache(cfg.ProjectDir)),
			proxmox.WithTimeouts(&cfg.Timeouts),
			proxmox.WithLogger(debugLogger(opts.Debug)),
			proxmox.WithReporter(observer),
			proxmox.WithMetrics(reg),
		)
	}

	newProbeFactory = func(cfg *config.Config) provisioning.ProbeFactory {
		return func(_ *provisioning.Context, address string) (provisioning.ReadinessProbe, error) {
			client, err := ssh.NewClientFromKeyFile(address, cfg.SSH.Port, cfg.SSH.User, cfg.SSH.PrivateKeyPath)
			if err != nil {
				return nil, err
			}
			return ssh.NewProbe(client), nil
		}
	}

	newRunnerFactory = func(cfg *config.Config) provisioning.RunnerFactory {
		return func(_ *provisioning.Context, address string) (provisioning.ProvisionerRunner, error) {
			client, err := ssh.NewClientFromKeyFile(address, cfg.SSH.Port, cfg.SSH.User, cfg.SSH.PrivateKeyPath)
			if err != nil {
				return nil, err
			}
			return ssh.NewInlineProvisioner(client), nil
		}
	}
)

// debugLogger returns the request logger used with --debug.
func debugLogger(debug bool) logr.Logger {
	if !debug {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		log.Printf("%s %s", prefix, args)
	}, funcr.Options{Verbosity: 2}).WithName("proxmox")
}

// runtime is what every handler needs after loading the configuration.
type runtime struct {
	opts     Options
	cfg      *config.Config
	client   proxmox.API
	observer provisioning.Observer
	metrics  *prometheus.Registry
}

func newRuntime(opts Options) (*runtime, error) {
	loadDotEnv()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	observer := opts.observer
	if observer == nil {
		observer = newObserver(opts)
	}
	reg := prometheus.NewRegistry()
	return &runtime{
		opts:     opts,
		cfg:      cfg,
		client:   newAPIClient(cfg, opts, observer, reg),
		observer: observer,
		metrics:  reg,
	}, nil
}

// session creates the provisioning session of one invocation. The
// allocation jitter is enabled when several machines run at once.
func (r *runtime) session(parallel bool) *provisioning.Session {
	return provisioning.NewSession(r.client, r.cfg, r.observer,
		provisioning.WithProbeFactory(newProbeFactory(r.cfg)),
		provisioning.WithRunnerFactory(newRunnerFactory(r.cfg)),
		provisioning.WithAllocationJitter(parallel),
	)
}

// finish writes the metrics file when requested.
func (r *runtime) finish() error {
	if r.opts.MetricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.opts.MetricsFile, r.metrics); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// forEachMachine runs fn for each selected machine. With limit 1 the
// machines are handled one after another in configuration order.
func (r *runtime) forEachMachine(ctx context.Context, names []string, limit int, fn func(*provisioning.Context) error) error {
	machines, err := r.cfg.SelectMachines(names)
	if err != nil {
		return err
	}
	if len(machines) == 0 {
		return fmt.Errorf("no machines defined in the configuration")
	}

	session := r.session(limit != 1 && len(machines) > 1)
	tasks := make([]async.Task, 0, len(machines))
	for _, m := range machines {
		tasks = append(tasks, async.Task{
			Name: m.Name,
			Func: func(ctx context.Context) error {
				pctx, err := provisioning.NewContext(ctx, session, m)
				if err != nil {
					return err
				}
				return fn(pctx)
			},
		})
	}
	if limit == 1 {
		return runSequential(ctx, tasks)
	}
	return async.RunParallel(ctx, tasks, limit)
}

// runSequential runs tasks in order, reporting failures like async.RunParallel.
func runSequential(ctx context.Context, tasks []async.Task) error {
	var errs []error
	for _, task := range tasks {
		if err := task.Func(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
		}
	}
	return errors.Join(errs...)
}

// run wraps a handler body with runtime setup and the metrics dump.
func run(opts Options, body func(*runtime) error) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	err = body(rt)
	if ferr := rt.finish(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
