package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"equiminer/pkg/block"
	"equiminer/pkg/solver/core"
)

// DefaultIterations is the nonce count used when Config.Iterations is unset
const DefaultIterations = 100

// Config controls a benchmark run
type Config struct {
	// Iterations is the number of nonces to solve across all solvers
	Iterations int
	// Seed feeds the nonce generator; zero uses the current time
	Seed int64
	// Progress, when set, renders a progress bar to it
	Progress io.Writer
	// Warmup delays the start after the solvers are started
	Warmup time.Duration
}

// Result summarizes a benchmark run
type Result struct {
	Duration   time.Duration `json:"duration"`
	Iterations uint64        `json:"iterations"`
	Solutions  uint64        `json:"solutions"`
}

// IterationsPerSecond returns the solve rate
func (r *Result) IterationsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Iterations) / r.Duration.Seconds()
}

// SolutionsPerSecond returns the solution rate
func (r *Result) SolutionsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Solutions) / r.Duration.Seconds()
}

func (r *Result) String() string {
	return fmt.Sprintf("Total time: %d ms\nTotal iterations: %d\nTotal solutions found: %d\nSpeed: %.4f I/s\nSpeed: %.4f Sols/s",
		r.Duration.Milliseconds(), r.Iterations, r.Solutions, r.IterationsPerSecond(), r.SolutionsPerSecond())
}

// Nonces returns n benchmark nonces. The first has only byte 31 set, the
// rest are random.
func Nonces(n int, seed int64) [][]byte {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([][]byte, n)
	out[0] = make([]byte, block.NonceSize)
	out[0][31] = 1
	for i := 1; i < n; i++ {
		out[i] = make([]byte, block.NonceSize)
		rng.Read(out[i])
	}
	return out
}

// Run benchmarks solvers against an empty header. Solvers pull nonces from
// one shared queue until it is drained or ctx is done.
func Run(ctx context.Context, solvers []core.Solver, cfg Config) (*Result, error) {
	if len(solvers) == 0 {
		return nil, errors.New("no solvers to benchmark")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	nonces := Nonces(cfg.Iterations, cfg.Seed)
	queue := make(chan []byte, len(nonces))
	for _, n := range nonces {
		queue <- n
	}
	close(queue)

	for _, s := range solvers {
		log.Infof("Benchmarking %s worker (%s) %s", s.Kind(), s.Name(), s.DeviceInfo())
	}

	var progress *mpb.Progress
	var bar *mpb.Bar
	if cfg.Progress != nil {
		progress = mpb.New(mpb.WithWidth(80), mpb.WithOutput(cfg.Progress))
		bar = progress.AddBar(int64(len(nonces)),
			mpb.PrependDecorators(
				decor.Name("Benchmark: "),
				decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
			),
		)
	}

	var (
		iterations atomic.Uint64
		solutions  atomic.Uint64
		started    = make(chan struct{})
	)
	var header block.Header
	input := header.Input()

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range solvers {
		i, s := i, s
		g.Go(func() error {
			log.Debugf("Thread #%d started (%s)", i, s.Name())
			if err := s.Start(); err != nil {
				return fmt.Errorf("starting %s: %w", s.Name(), err)
			}
			defer s.Stop()

			select {
			case <-started:
			case <-gctx.Done():
				return gctx.Err()
			}

			cancel := func() bool { return gctx.Err() != nil }
			onSolution := func([]uint32, int, []byte) { solutions.Add(1) }
			for nonce := range queue {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err := s.Solve(input, nonce, cancel, onSolution, nil); err != nil {
					return fmt.Errorf("%s solve: %w", s.Name(), err)
				}
				iterations.Add(1)
				if bar != nil {
					bar.Increment()
				}
			}
			log.Debugf("Thread #%d ended (%s)", i, s.Name())
			return nil
		})
	}

	if cfg.Warmup > 0 {
		time.Sleep(cfg.Warmup)
	}
	log.Info("Benchmark starting... this may take several minutes, please wait...")
	start := time.Now()
	close(started)
	err := g.Wait()
	res := &Result{
		Duration:   time.Since(start),
		Iterations: iterations.Load(),
		Solutions:  solutions.Load(),
	}

	if progress != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		return res, err
	}

	log.Info("Benchmark done!")
	log.Infof("Total time : %d ms", res.Duration.Milliseconds())
	log.Infof("Total iterations: %d", res.Iterations)
	log.Infof("Total solutions found: %d", res.Solutions)
	log.Infof("Speed: %.4f I/s", res.IterationsPerSecond())
	log.Infof("Speed: %.4f Sols/s", res.SolutionsPerSecond())
	return res, nil
}
