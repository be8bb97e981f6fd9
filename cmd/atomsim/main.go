package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/invopop/jsonschema"
	"github.com/san-kum/atomsim/internal/config"
	"github.com/san-kum/atomsim/internal/export"
	"github.com/san-kum/atomsim/internal/logging"
	"github.com/san-kum/atomsim/internal/storage"
	"github.com/san-kum/atomsim/internal/stream"
	"github.com/san-kum/atomsim/internal/viz"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	speed      int
	tickBudget time.Duration
	iterations int
	record     bool
	paused     bool
	streamAddr string
	withStream bool
	svgOut     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atomsim",
		Short: "interactive molecular dynamics sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTUI,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "preset as example/name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	sessionFlags(rootCmd)
	rootCmd.Flags().BoolVar(&withStream, "stream", false, "also stream snapshots over websocket")
	rootCmd.Flags().StringVar(&streamAddr, "addr", config.DefaultStreamAddr, "stream listen address")

	runCmd := &cobra.Command{
		Use:   "run [script|example]",
		Short: "run a script in the terminal UI",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTUI,
	}
	sessionFlags(runCmd)
	runCmd.Flags().BoolVar(&withStream, "stream", false, "also stream snapshots over websocket")
	runCmd.Flags().StringVar(&streamAddr, "addr", config.DefaultStreamAddr, "stream listen address")

	headlessCmd := &cobra.Command{
		Use:   "headless [script|example]",
		Short: "run a script without UI and print a summary",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHeadless,
	}
	sessionFlags(headlessCmd)
	headlessCmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "worker iterations")
	headlessCmd.Flags().StringVar(&svgOut, "svg", "", "write the final snapshot as SVG")

	serveCmd := &cobra.Command{
		Use:   "serve [script|example]",
		Short: "run a script and stream snapshots to websocket viewers",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	sessionFlags(serveCmd)
	serveCmd.Flags().StringVar(&streamAddr, "addr", config.DefaultStreamAddr, "listen address")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded sessions",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [compute]",
		Short: "plot a recorded compute",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "also write each scalar series as SVG (suffixed with the compute id)")

	examplesCmd := &cobra.Command{
		Use:   "examples",
		Short: "install bundled example scripts into the data directory",
		RunE:  installExamples,
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "print the config JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			reflector := jsonschema.Reflector{AllowAdditionalProperties: false}
			schema := reflector.Reflect(new(config.Config))
			schema.Title = "atomsim session config"
			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [example]",
		Short: "list available presets for an example",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for example: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s/%s\n", args[0], p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, headlessCmd, serveCmd, listCmd, plotCmd, examplesCmd, schemaCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sessionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&speed, "speed", config.DefaultSpeed, "engine steps per tick")
	cmd.Flags().DurationVar(&tickBudget, "budget", config.DefaultTickBudget, "worker tick budget")
	cmd.Flags().BoolVar(&record, "record", false, "record computes to the data directory")
	cmd.Flags().BoolVar(&paused, "paused", false, "start paused")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// the terminal belongs to the UI
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, "atomsim.log")
	}
	logger, closer, err := logging.New(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	temp := temperatureCompute(cfg)
	app := viz.NewApp(s.sim, s.name, s.source, temp)
	p := tea.NewProgram(app, tea.WithAltScreen())
	s.sim.Observe(viz.Forward(p, temp))

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.worker.Run(ctx) })
	if withStream {
		hub := stream.NewHub(s.sim, logger)
		s.sim.Observe(hub.Observe)
		g.Go(func() error { return hub.Serve(ctx, cfg.Stream.Addr) })
	}
	g.Go(func() error {
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		_, err := p.Run()
		cancel()
		return err
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.save()
	return nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	for i := 0; i < cfg.Iterations && ctx.Err() == nil; i++ {
		s.worker.Step()
	}
	// one more pass publishes the status of the last tick
	s.worker.Step()
	elapsed := time.Since(start)

	st := s.sim.Status()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "script\t%s\n", s.name)
	fmt.Fprintf(w, "iterations\t%d\n", s.worker.Iterations())
	fmt.Fprintf(w, "wall time\t%s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "timestep\t%d\n", st.Timestep)
	fmt.Fprintf(w, "time\t%.4f\n", st.SimulationTime)
	fmt.Fprintf(w, "atoms\t%d (%d types)\n", st.NumberOfAtoms, st.NumberOfAtomTypes)
	fmt.Fprintf(w, "box\t%.2f x %.2f x %.2f\n", st.SystemSize[0], st.SystemSize[1], st.SystemSize[2])
	fmt.Fprintf(w, "per step\t%s\n", st.TimePerTimestep)
	fmt.Fprintf(w, "script line\t%d\n", st.ScriptLine)
	if st.Crashed {
		fmt.Fprintf(w, "error\tline %d: %s: %s\n", st.FaultLine, st.FaultLocation, st.FaultMessage)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if temp := temperatureCompute(cfg); temp != "" {
		data := seriesOf(s.recorder.Samples(), temp)
		if len(data) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Width(60), asciigraph.Caption(temp)))
		}
	}
	if svgOut != "" {
		svg := export.SnapshotToSVG(s.sim.Snapshot(), st.SystemSize, 800)
		if svg == "" {
			return fmt.Errorf("no snapshot to export")
		}
		if err := os.WriteFile(svgOut, []byte(svg), 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgOut)
	}
	s.save()
	if st.Crashed {
		return fmt.Errorf("engine error at line %d", st.FaultLine)
	}
	return nil
}

func seriesOf(samples []storage.Sample, compute string) []float64 {
	var out []float64
	for _, smp := range samples {
		if smp.Compute == compute && len(smp.Values) > 0 {
			out = append(out, smp.Values[0])
		}
	}
	return out
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	hub := stream.NewHub(s.sim, logger)
	s.sim.Observe(hub.Observe)

	ctx, cancel := signalContext()
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.worker.Run(ctx) })
	g.Go(func() error { return hub.Serve(ctx, cfg.Stream.Addr) })
	if err := g.Wait(); err != nil {
		return err
	}
	s.save()
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCRIPT\tSTARTED\tSTEPS\tATOMS\tSAMPLES\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Fault != nil {
			status = "error: " + run.Fault.Location
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Name,
			run.Started.Format("2006-01-02 15:04:05"),
			run.Timesteps,
			run.Atoms,
			run.Samples,
			status,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	computes := meta.Computes
	if len(args) > 1 {
		computes = args[1:]
	}
	if len(computes) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("script: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", meta.Samples)

	for _, c := range computes {
		times, values, err := st.LoadSeries(runID, c)
		if err != nil {
			return err
		}
		data := make([]float64, len(values))
		caption := fmt.Sprintf("%s vs time (%.3f to %.3f)", c, times[0], times[len(times)-1])
		if len(values[len(values)-1]) > 1 {
			// vector computes plot their last sample over the index
			data = values[len(values)-1]
			caption = fmt.Sprintf("%s at t=%.3f", c, times[len(times)-1])
		} else {
			for i := range values {
				data[i] = values[i][0]
			}
			if svgOut != "" {
				path := strings.TrimSuffix(svgOut, filepath.Ext(svgOut)) + "_" + c + ".svg"
				if err := os.WriteFile(path, []byte(export.SeriesToSVG(times, data, 800, 300, "#00ff00")), 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", path)
			}
		}
		fmt.Println(asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Width(60), asciigraph.Caption(caption)))
		fmt.Println()
	}
	return nil
}

func installExamples(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	written, err := st.InstallExamples()
	if err != nil {
		return err
	}
	if len(written) == 0 {
		fmt.Printf("examples already installed in %s\n", st.ExamplesDir())
		return nil
	}
	for _, p := range written {
		fmt.Println(p)
	}
	log.Info("examples installed", "dir", st.ExamplesDir(), "count", len(written))
	return nil
}
