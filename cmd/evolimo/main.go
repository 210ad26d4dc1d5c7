// Command evolimo is the minimal ambient CLI around the compiler and
// runtime: compile every registered definition module to its JSON IR,
// or load one such IR and step it forward, printing a periodic
// console report the way the original's simulator loop does.
//
// This is explicitly outside the core's tested surface (spec.md §1) —
// a thin wrapper, not a feature of the compiler or runtime packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/masaori/evolimo/internal/compiler"
	"github.com/masaori/evolimo/internal/definition"
	"github.com/masaori/evolimo/internal/runtime"
	"github.com/masaori/evolimo/internal/tensor"

	_ "github.com/masaori/evolimo/definitions/gravitywell"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: evolimo <compile|run> [flags]")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "compile":
		err = runCompile(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	outDir := fs.String("out", "_gen", "directory to write <name>/dynamics_ir.json and visual_mapping.json into")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bundles := definition.All()
	for _, b := range bundles {
		ir, err := compiler.Compile(b)
		if err != nil {
			return fmt.Errorf("compile %s: %w", b.Name, err)
		}

		dir := filepath.Join(*outDir, b.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}

		if err := writeFile(filepath.Join(dir, "dynamics_ir.json"), func(f *os.File) error {
			return compiler.WriteIR(f, ir)
		}); err != nil {
			return err
		}

		if b.Visual != nil {
			if err := writeFile(filepath.Join(dir, "visual_mapping.json"), func(f *os.File) error {
				return compiler.WriteVisualMapping(f, b.Visual)
			}); err != nil {
				return err
			}
		}

		log.Printf("compiled %s: %d state vars, %d ops", b.Name, len(ir.StateVars), len(ir.Operations))
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	irPath := fs.String("ir", "", "path to a compiled dynamics_ir.json")
	frames := fs.Int("frames", 100, "number of steps to run")
	seed := fs.Int64("seed", 1, "rng seed for genes/state initialization")
	reportEvery := fs.Int("report-every", 20, "print a progress line every N frames")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *irPath == "" {
		return fmt.Errorf("run: -ir is required")
	}

	f, err := os.Open(*irPath)
	if err != nil {
		return err
	}
	defer f.Close()

	ir, err := compiler.LoadIR(f)
	if err != nil {
		return err
	}

	driver, err := runtime.NewDriver(ir, *seed)
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < *frames; i++ {
		if err := driver.Step(ctx); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if (i+1)%(*reportEvery) == 0 {
			elapsed := time.Since(start).Seconds()
			fps := float64(driver.Frame()) / elapsed
			state, _ := driver.Snapshot()
			energy := sumEnergy(state)
			log.Printf("sim_frame=%d dropped=%d fps=%.1f energy=%.3f",
				driver.Frame(), driver.Stats().Dropped, fps, energy)
		}
	}
	return nil
}

// sumEnergy gives the console report something to track across
// frames, mirroring the original's per-frame energy line; it sums
// every column of every agent's state, not a physically meaningful
// quantity on its own.
func sumEnergy(state *tensor.Tensor) float64 {
	var total float64
	for _, v := range state.Data {
		total += float64(v)
	}
	return total
}
