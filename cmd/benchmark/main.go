// Command benchmark measures reactive-core latencies: cell mutation with
// registered callbacks, bounded channel round-trips, and broadcast
// fan-out. Results render as percentile tables.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/reactive/pkg/channel"
	"github.com/go-drift/reactive/pkg/reactive"
)

const (
	configKey     = "config"
	iterationsKey = "iterations"
	cpuProfileKey = "cpuprofile"
)

// scenarios configures which benchmark shapes run. A YAML file with the
// same field names overrides the defaults.
type scenarios struct {
	Iterations        int   `yaml:"iterations"`
	CellCallbacks     []int `yaml:"cellCallbacks"`
	ChannelCapacities []int `yaml:"channelCapacities"`
	Subscribers       []int `yaml:"subscribers"`
}

func defaultScenarios() scenarios {
	return scenarios{
		Iterations:        1000,
		CellCallbacks:     []int{1, 10, 100},
		ChannelCapacities: []int{1, 64, 1024},
		Subscribers:       []int{1, 10, 100},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure reactive cell and channel latencies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configKey,
				Usage: "YAML scenario file overriding the defaults",
			},
			&cli.IntFlag{
				Name:  iterationsKey,
				Usage: "Samples per scenario",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to the given file",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := defaultScenarios()
	if path := cmd.String(configKey); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read scenario config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parse scenario config: %w", err)
		}
	}
	if n := cmd.Int(iterationsKey); n > 0 {
		cfg.Iterations = int(n)
	}

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	benchmarkCells(cfg)
	benchmarkChannels(cfg)
	benchmarkBroadcast(cfg)
	return nil
}

func newResultTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendCalc(tbl table.Writer, name string, tach *tachymeter.Tachymeter) {
	calc := tach.Calc()
	tbl.AppendRows([]table.Row{
		{name, calc.Time.Avg, calc.Time.Min, calc.Time.P75, calc.Time.P99, calc.Time.Max},
	})
}

// benchmarkCells measures Set latency with a varying number of
// synchronous change callbacks registered.
func benchmarkCells(cfg scenarios) {
	tbl := newResultTable("Cell Mutation")
	for _, callbacks := range cfg.CellCallbacks {
		tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

		d := reactive.NewDynamic(0)
		sink := 0
		for i := 0; i < callbacks; i++ {
			d.OnChange(func(v int) error {
				sink += v
				return nil
			}).Persist()
		}

		for i := 0; i < cfg.Iterations; i++ {
			start := time.Now()
			if err := d.Set(i); err != nil {
				log.Fatal(err)
			}
			tach.AddTime(time.Since(start))
		}
		d.Close()

		appendCalc(tbl, fmt.Sprintf("set with %d callbacks", callbacks), tach)
	}
	tbl.Render()
}

// benchmarkChannels measures a send+receive round-trip on bounded
// channels of varying capacity.
func benchmarkChannels(cfg scenarios) {
	tbl := newResultTable("MPSC Round-Trip")
	for _, capacity := range cfg.ChannelCapacities {
		tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

		tx, rx := channel.NewBounded[int](capacity)
		for i := 0; i < cfg.Iterations; i++ {
			start := time.Now()
			if err := tx.Send(i); err != nil {
				log.Fatal(err)
			}
			if _, err := rx.Receive(); err != nil {
				log.Fatal(err)
			}
			tach.AddTime(time.Since(start))
		}
		tx.Close()
		rx.Close()

		appendCalc(tbl, fmt.Sprintf("capacity %d", capacity), tach)
	}
	tbl.Render()
}

// benchmarkBroadcast measures fan-out completion time: one send until
// every subscriber has observed the value.
func benchmarkBroadcast(cfg scenarios) {
	tbl := newResultTable("Broadcast Fan-Out")
	for _, subscribers := range cfg.Subscribers {
		tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

		b := channel.NewBroadcast[int]()
		acks := make(chan struct{}, subscribers)
		handles := make([]*channel.CallbackHandle, 0, subscribers)
		for i := 0; i < subscribers; i++ {
			h := b.OnReceiveNonBlocking(func(v int) error {
				acks <- struct{}{}
				return nil
			})
			handles = append(handles, h)
		}

		for i := 0; i < cfg.Iterations; i++ {
			start := time.Now()
			if err := b.Send(i); err != nil {
				log.Fatal(err)
			}
			for n := 0; n < subscribers; n++ {
				<-acks
			}
			tach.AddTime(time.Since(start))
		}
		for _, h := range handles {
			h.Close()
		}
		b.Close()

		appendCalc(tbl, fmt.Sprintf("%d subscribers", subscribers), tach)
	}
	tbl.Render()
}
