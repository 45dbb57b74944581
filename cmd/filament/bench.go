package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/filament-dev/filament/pkg/filament"
)

// benchGraph is one synthetic dependency graph under test. stop tears the
// whole graph down so graphs do not interfere across runs.
type benchGraph struct {
	src  *filament.Signal[int]
	stop func()
}

type benchShape struct {
	name  string
	build func(width, depth int) benchGraph
}

func benchCmd() *cobra.Command {
	var (
		width  int
		depth  int
		iters  int
		shape  string
		warmup int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure propagation latency over synthetic graphs",
		Long: `Builds synthetic dependency graphs (chains of memos, wide fan-outs,
and diamonds that reconverge) and measures write-to-effect propagation
latency with all effects in synchronous flush mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			shapes := []benchShape{
				{"chain", buildChain},
				{"fanout", buildFanOut},
				{"diamond", buildDiamond},
			}
			if shape != "all" {
				found := false
				for _, s := range shapes {
					if s.name == shape {
						shapes = []benchShape{s}
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("unknown shape %q (chain, fanout, diamond, all)", shape)
				}
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{
				"shape", "size", "iters", "avg", "min", "p75", "p99", "max", "links",
			})

			for _, s := range shapes {
				info("running %s %dx%d", s.name, width, depth)

				var before, after runtime.MemStats
				runtime.GC()
				runtime.ReadMemStats(&before)

				g := s.build(width, depth)

				runtime.ReadMemStats(&after)
				links := filament.LiveLinks()

				tach := tachymeter.New(&tachymeter.Config{Size: iters})
				for i := 0; i < warmup; i++ {
					g.src.Set(g.src.Peek() + 1)
				}
				for i := 0; i < iters; i++ {
					start := time.Now()
					g.src.Set(g.src.Peek() + 1)
					tach.AddTime(time.Since(start))
				}

				calc := tach.Calc()
				table.Append([]string{
					s.name,
					fmt.Sprintf("%dx%d", width, depth),
					humanize.Comma(int64(iters)),
					calc.Time.Avg.String(),
					calc.Time.Min.String(),
					calc.Time.P75.String(),
					calc.Time.P99.String(),
					calc.Time.Max.String(),
					humanize.Comma(links),
				})

				info("graph heap: %s", humanize.Bytes(after.HeapAlloc-before.HeapAlloc))
				g.stop()
			}

			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 10, "graph width (parallel branches)")
	cmd.Flags().IntVar(&depth, "depth", 10, "graph depth (memo layers per branch)")
	cmd.Flags().IntVar(&iters, "iters", 1000, "measured writes per shape")
	cmd.Flags().IntVar(&warmup, "warmup", 100, "unmeasured warm-up writes")
	cmd.Flags().StringVar(&shape, "shape", "all", "graph shape: chain, fanout, diamond, all")
	return cmd
}

// buildChain stacks depth memos on one signal, width times over, with a
// sync effect at the end of each chain.
func buildChain(width, depth int) benchGraph {
	src := filament.NewSignal(0)
	var stops []filament.Stop
	var memos []*filament.Memo[int]

	for i := 0; i < width; i++ {
		last := func() int { return src.Get() }
		for j := 0; j < depth; j++ {
			prev := last
			m := filament.NewMemo(func() int { return prev() + 1 })
			memos = append(memos, m)
			last = m.Get
		}
		tail := last
		stop := filament.MustRunEffect(func() {
			tail()
		}, filament.EffectFlush(filament.FlushSyncMode))
		stops = append(stops, stop)
	}

	return benchGraph{src: src, stop: teardown(stops, memos)}
}

// teardown disposes effects first, then memos, so no effect observes a
// disposed memo.
func teardown(stops []filament.Stop, memos []*filament.Memo[int]) func() {
	return func() {
		for _, stop := range stops {
			stop()
		}
		for _, m := range memos {
			m.Dispose()
		}
	}
}

// buildFanOut hangs width*depth independent memos directly off one signal,
// each observed by its own sync effect.
func buildFanOut(width, depth int) benchGraph {
	src := filament.NewSignal(0)
	n := width * depth
	var stops []filament.Stop
	var memos []*filament.Memo[int]

	for i := 0; i < n; i++ {
		offset := i
		m := filament.NewMemo(func() int { return src.Get() + offset })
		memos = append(memos, m)
		stop := filament.MustRunEffect(func() {
			m.Get()
		}, filament.EffectFlush(filament.FlushSyncMode))
		stops = append(stops, stop)
	}

	return benchGraph{src: src, stop: teardown(stops, memos)}
}

// buildDiamond fans one signal out to width memos and reconverges them
// through a single summing memo observed by one sync effect.
func buildDiamond(width, depth int) benchGraph {
	src := filament.NewSignal(0)
	var stops []filament.Stop
	var memos []*filament.Memo[int]

	for layer := 0; layer < depth; layer++ {
		arms := make([]*filament.Memo[int], width)
		for i := 0; i < width; i++ {
			offset := i
			arms[i] = filament.NewMemo(func() int { return src.Get() * (offset + 1) })
		}
		memos = append(memos, arms...)
		sum := filament.NewMemo(func() int {
			total := 0
			for _, arm := range arms {
				total += arm.Get()
			}
			return total
		})
		memos = append(memos, sum)
		stop := filament.MustRunEffect(func() {
			sum.Get()
		}, filament.EffectFlush(filament.FlushSyncMode))
		stops = append(stops, stop)
	}

	return benchGraph{src: src, stop: teardown(stops, memos)}
}
