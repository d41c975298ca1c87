package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"equiminer/internal/api"
	"equiminer/internal/bench"
	"equiminer/internal/cli/ui"
	"equiminer/internal/config"
	"equiminer/internal/journal"
	"equiminer/internal/logging"
	"equiminer/internal/miner"
	"equiminer/internal/rpc"
	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/factory"
)

var log = logging.Main()

// Command line flags
var (
	configPath = flag.String("config", "", "configuration file (JSON)")
	saveConfig = flag.String("save-config", "", "write the effective configuration to this path and exit")
	mode       = flag.String("mode", "mine", "mine, bench or verify")

	paramN     = flag.Uint("n", 0, "Equihash N")
	paramK     = flag.Uint("k", 0, "Equihash K")
	cpuThreads = flag.Int("threads", 0, "CPU solver threads; negative for one per logical CPU")
	logLevel   = flag.String("loglevel", "", "log level (trace, debug, info, warn, error, critical)")
	logDir     = flag.String("logdir", "", "directory for rotated log files")
	apiAddr    = flag.String("api", "", "REST listen address")
	rpcAddr    = flag.String("rpc", "", "gRPC listen address")
	journalDB  = flag.String("journal", "", "share journal database")

	nonce1  = flag.String("nonce1", "", "server nonce (hex)")
	jobJSON = flag.String("job", "", `initial job as a JSON mining.notify params array, e.g. ["id",true,"target","partial_hash"]`)
	dash    = flag.Bool("ui", false, "show the terminal dashboard")

	iterations = flag.Int("iterations", 0, "bench: nonces to solve")

	headerHex   = flag.String("header", "", "verify: preimage (hex)")
	solutionHex = flag.String("solution", "", "verify: minimal solution (hex)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *saveConfig != "" {
		if err := config.SaveToFile(cfg, *saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *saveConfig)
		return
	}

	if err := setupLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "mine":
		err = runMiner(ctx, cfg)
	case "bench":
		err = runBench(ctx, cfg)
	case "verify":
		err = runVerify(cfg)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Errorf("%v", err)
		logging.Close()
		os.Exit(1)
	}
}

// loadConfig applies the configuration file, the environment and then the
// flags that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			cfg.Solver.N = uint32(*paramN)
		case "k":
			cfg.Solver.K = uint32(*paramK)
		case "threads":
			cfg.Solver.CPUThreads = *cpuThreads
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "logdir":
			cfg.LogDir = *logDir
		case "api":
			cfg.APIAddr = *apiAddr
		case "rpc":
			cfg.RPCAddr = *rpcAddr
		case "journal":
			cfg.JournalPath = *journalDB
		case "iterations":
			cfg.BenchIterations = *iterations
		}
	})
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.Config) error {
	if !logging.ValidLogLevel(cfg.LogLevel) {
		return fmt.Errorf("invalid log level %q (subsystems %v)", cfg.LogLevel, logging.SupportedSubsystems())
	}
	if cfg.LogDir != "" {
		if err := logging.InitLogRotator(filepath.Join(cfg.LogDir, "equiminer.log")); err != nil {
			return err
		}
	}
	logging.SetLogLevels(cfg.LogLevel)
	return nil
}

func generateSolvers(cfg *config.Config) (*factory.SolverFactory, error) {
	f := factory.NewSolverFactory(&cfg.Solver)
	if _, err := f.GenerateSolvers(); err != nil {
		return nil, err
	}
	report := f.GetDetectionReport()
	log.Infof("%s: %d CPU thread(s), %d CUDA device(s)", report.Params, report.CPUThreads, report.CUDACount)
	for _, s := range report.Solvers {
		log.Infof("  #%d %s (%s) %s", s.Worker, s.Kind, s.Name, s.DeviceInfo)
	}
	return f, nil
}

func runMiner(ctx context.Context, cfg *config.Config) error {
	params, err := cfg.Solver.Params()
	if err != nil {
		return err
	}
	f, err := generateSolvers(cfg)
	if err != nil {
		return err
	}

	queue := miner.NewChannelSink(cfg.SinkBuffer)
	var sink miner.Sink = queue
	var registry miner.Registry
	var store api.SolutionStore
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		sink = journal.NewSink(j, queue)
		registry = j
		store = j
	}

	m := miner.New(f.Solvers(), miner.Config{Params: params, Sink: sink})
	log.Infof("Starting %s", m.UserAgent())

	if *nonce1 != "" {
		if err := m.SetServerNonce(*nonce1); err != nil {
			return err
		}
	}
	if *jobJSON != "" {
		var notify []interface{}
		if err := json.Unmarshal([]byte(*jobJSON), &notify); err != nil {
			return fmt.Errorf("parsing -job: %w", err)
		}
		if _, err := m.Notify(notify); err != nil {
			return err
		}
	}

	m.Start()
	defer m.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		drainSubmissions(gctx, queue)
		return nil
	})
	if cfg.SpeedInterval > 0 {
		g.Go(func() error {
			m.Speed().Monitor(gctx, time.Duration(cfg.SpeedInterval)*time.Second)
			return nil
		})
	}
	if cfg.APIAddr != "" {
		srv, err := api.New(api.Options{Miner: m, Registry: registry, Store: store})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.APIAddr)
		})
	}
	if cfg.RPCAddr != "" {
		if err := startRPC(gctx, g, m, registry, cfg.RPCAddr); err != nil {
			return err
		}
	}
	if *dash {
		uiCtx, cancel := context.WithCancel(gctx)
		g.Go(func() error {
			defer cancel()
			return runDashboard(uiCtx, m)
		})
		g.Go(func() error {
			<-uiCtx.Done()
			// leaving the dashboard ends the process
			return context.Canceled
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("Shutting down")
	return err
}

func runDashboard(ctx context.Context, m *miner.Miner) error {
	tap := ui.NewLogTap()
	logging.MuteConsole(true)
	logging.SetTap(tap)
	defer func() {
		logging.SetTap(nil)
		logging.MuteConsole(false)
	}()
	return ui.Run(ctx, m, time.Second, tap)
}

// drainSubmissions logs every share with its mining.submit arguments. A
// stratum transport consumes the same queue.
func drainSubmissions(ctx context.Context, queue *miner.ChannelSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-queue.C():
			if !ok {
				return
			}
			params, _ := json.Marshal(sub.Params())
			log.Infof("Share for job %s: mining.submit %s", sub.JobID, params)
		}
	}
}

func runBench(ctx context.Context, cfg *config.Config) error {
	f, err := generateSolvers(cfg)
	if err != nil {
		return err
	}
	res, err := bench.Run(ctx, f.Solvers(), bench.Config{
		Iterations: cfg.BenchIterations,
		Progress:   os.Stdout,
		Warmup:     time.Second,
	})
	if err != nil {
		return err
	}
	fmt.Println(res)
	return nil
}

func runVerify(cfg *config.Config) error {
	params, err := cfg.Solver.Params()
	if err != nil {
		return err
	}
	v, err := equihash.NewVerifier(params)
	if err != nil {
		return err
	}
	header, err := hex.DecodeString(*headerHex)
	if err != nil {
		return fmt.Errorf("invalid -header: %w", err)
	}
	sol, err := hex.DecodeString(*solutionHex)
	if err != nil {
		return fmt.Errorf("invalid -solution: %w", err)
	}
	if err := v.Validate(header, sol); err != nil {
		return err
	}
	fmt.Printf("valid %s solution\n", params)
	return nil
}

func startRPC(ctx context.Context, g *errgroup.Group, m *miner.Miner, registry miner.Registry, addr string) error {
	srv, err := rpc.NewMinerServer(m, registry)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	g.Go(func() error {
		return rpc.Serve(ctx, lis, srv)
	})
	return nil
}
