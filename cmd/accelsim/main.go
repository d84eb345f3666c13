package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/analysis"
	"github.com/san-kum/accelsim/internal/automation"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/experiment"
	"github.com/san-kum/accelsim/internal/metrics"
	"github.com/san-kum/accelsim/internal/optim"
	"github.com/san-kum/accelsim/internal/render"
	"github.com/san-kum/accelsim/internal/sim"
	"github.com/san-kum/accelsim/internal/storage"
	"github.com/san-kum/accelsim/internal/stream"
	"github.com/san-kum/accelsim/internal/viz"
)

var (
	dataDir      string
	configFile   string
	preset       string
	latticeName  string
	steps        int
	dt           float64
	workers      int
	interactions bool
	// run outputs
	metricsAddr string
	streamAddr  string
	streamRate  float64
	live        bool
	frameRate   int
	noSave      bool
	// analysis
	axisName string
	outFile  string
	svgFile  string
	// scan
	scanParam string
	scanFrom  float64
	scanTo    float64
	scanN     int
	// aperture
	apertureR float64
	apertureZ float64
	trials    int
	seed      int64
	// optimize
	optParams   []string
	optMetric   string
	optMaximize bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "accelsim",
		Short: "charged particle beam accelerator simulator",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".accelsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	runCmd.Flags().StringVar(&streamAddr, "stream-addr", "", "serve websocket samples on this address")
	runCmd.Flags().Float64Var(&streamRate, "stream-rate", 20, "max websocket frames per second")
	runCmd.Flags().BoolVar(&live, "live", false, "print a status line per sample")
	runCmd.Flags().IntVar(&frameRate, "fps", 10, "status lines per second with --live")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [run_id]",
		Short: "betatron tune of the reference particle",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase",
		Short: "run and print the transverse phase space of each beam",
		Args:  cobra.NoArgs,
		RunE:  phasePlot,
	}
	addConfigFlags(phaseCmd)
	phaseCmd.Flags().StringVar(&axisName, "axis", "r", "phase plane: r or z")

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "print the accelerator, its elements and particles",
		Args:  cobra.NoArgs,
		RunE:  dumpAccelerator,
	}
	addConfigFlags(dumpCmd)
	dumpCmd.Flags().StringVar(&outFile, "out", "", "write to file instead of stdout")
	dumpCmd.Flags().StringVar(&svgFile, "svg", "", "also write a top view svg")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run simulation in the terminal monitor",
		Args:  cobra.NoArgs,
		RunE:  watchSimulation,
	}
	addConfigFlags(watchCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "sweep one lattice parameter and compare beam survival",
		Args:  cobra.NoArgs,
		RunE:  scanLattice,
	}
	addConfigFlags(scanCmd)
	scanCmd.Flags().StringVar(&scanParam, "param", "field_scale", "lattice parameter: "+strings.Join(config.LatticeParamNames(), ", "))
	scanCmd.Flags().Float64Var(&scanFrom, "from", 0.995, "first value")
	scanCmd.Flags().Float64Var(&scanTo, "to", 1.005, "last value")
	scanCmd.Flags().IntVar(&scanN, "n", 5, "number of points")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run and store a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	apertureCmd := &cobra.Command{
		Use:   "aperture",
		Short: "randomized injection errors against survival",
		Args:  cobra.NoArgs,
		RunE:  runAperture,
	}
	addConfigFlags(apertureCmd)
	apertureCmd.Flags().Float64Var(&apertureR, "dr", 0.01, "max radial injection error (m)")
	apertureCmd.Flags().Float64Var(&apertureZ, "dz", 0.01, "max vertical injection error (m)")
	apertureCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	apertureCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "grid search lattice parameters for the best metric",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	addConfigFlags(optimizeCmd)
	optimizeCmd.Flags().StringArrayVar(&optParams, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	optimizeCmd.Flags().StringVar(&optMetric, "metric", "max_centroid_r", "metric to optimize")
	optimizeCmd.Flags().BoolVar(&optMaximize, "maximize", false, "maximize instead of minimize")

	presetsCmd := &cobra.Command{
		Use:   "presets [lattice]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, tuneCmd, exportCmd, phaseCmd, dumpCmd, watchCmd, scanCmd, batchCmd, apertureCmd, optimizeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&latticeName, "lattice", "fodo-ring", "lattice")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep (s)")
	cmd.Flags().IntVar(&workers, "workers", 1, "worker goroutines per beam")
	cmd.Flags().BoolVar(&interactions, "interactions", false, "enable particle interactions")
}

// loadConfig resolves the run config: a config file wins over a preset, and
// explicitly set flags override both.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		name = latticeName
	)
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
		name = c.Lattice
	case preset != "":
		cfg = config.GetPreset(latticeName, preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(latticeName))
		}
		name = latticeName + "-" + preset
	default:
		cfg = config.DefaultConfig()
		cfg.Lattice = latticeName
	}

	flags := cmd.Flags()
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("interactions") {
		cfg.Interactions = interactions
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

func header(title string) {
	fmt.Println(viz.Title.Render(title))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	exp := experiment.New(cfg, registry)
	if err := exp.Setup(registry.DefaultMetrics()); err != nil {
		return err
	}
	s := exp.Simulator()

	if live {
		s.AddObserver(viz.NewPrinter(os.Stdout, frameRate))
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.AddObserver(metrics.NewCollector(reg, name))
		go func() {
			if err := metrics.ServeMetrics(metricsAddr, reg); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		fmt.Printf("metrics on http://%s/metrics\n", metricsAddr)
	}
	if streamAddr != "" {
		hub := stream.NewHub(streamRate)
		defer hub.Close()
		s.AddObserver(hub)
		go func() {
			if err := stream.Serve(streamAddr, hub); err != nil {
				fmt.Fprintf(os.Stderr, "stream server: %v\n", err)
			}
		}()
		fmt.Printf("samples on ws://%s/stream\n", streamAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s: %d particles, %d steps...\n", name, exp.Accelerator().ParticleCount(), cfg.Steps)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		fmt.Printf("interrupted: %v\n", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(name, cfg, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	final := result.Final()
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("particles: %d (lost %d)\n", final.Particles, final.Losses)
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	for _, m := range registry.DefaultMetrics() {
		fmt.Printf("  %s: %.6f\n", m.Name(), result.Metrics[m.Name()])
	}
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
	fmt.Fprintln(w, "ID\tLATTICE\tTIME\tSTEPS\tDT\tMODE\tLOSSES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.1es\t%s\t%d\n",
			run.ID,
			run.Lattice,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.StepsTaken,
			run.Steps,
			run.Dt,
			run.Mode,
			run.Losses,
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
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	header("run " + meta.ID)
	fmt.Printf("lattice: %s\n", meta.Lattice)
	fmt.Printf("samples: %d\n\n", len(samples))

	series := []struct {
		caption string
		value   func(sim.Sample) float64
	}{
		{"particles", func(s sim.Sample) float64 { return float64(s.Particles) }},
		{"emittance r", func(s sim.Sample) float64 { return s.EmittanceR }},
		{"emittance z", func(s sim.Sample) float64 { return s.EmittanceZ }},
		{"centroid r (mm)", func(s sim.Sample) float64 { return s.CentroidR * 1e3 }},
	}
	for _, ser := range series {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = ser.value(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(ser.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	track, _, err := st.LoadTrack(runID)
	if err == nil && len(track) > 1 {
		mm := make([]float64, len(track))
		for i, r := range track {
			mm[i] = r * 1e3
		}
		fmt.Println(asciigraph.Plot(mm,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("reference radial offset (mm)"),
		))
	}
	return nil
}

func tuneRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	track, _, err := st.LoadTrack(runID)
	if err != nil {
		return err
	}

	revolution := experiment.RevolutionPeriod(meta.LatticeParams)
	tune, err := analysis.Tune(track, meta.Dt, revolution)
	if err != nil {
		return err
	}
	freq, err := analysis.DominantFrequency(track, meta.Dt)
	if err != nil {
		return err
	}

	header("tune " + meta.ID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "samples\t%d\n", len(track))
	fmt.Fprintf(w, "revolution\t%.4es\n", revolution)
	fmt.Fprintf(w, "frequency\t%.4eHz\n", freq)
	fmt.Fprintf(w, "tune\t%.4f\n", tune)
	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).Export(args[0], os.Stdout)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	axis := beam.AxisR
	switch strings.ToLower(axisName) {
	case "r":
	case "z":
		axis = beam.AxisZ
	default:
		return fmt.Errorf("unknown axis: %s", axisName)
	}

	exp := experiment.New(cfg, nil)
	if err := exp.Setup(nil); err != nil {
		return err
	}
	result, err := exp.Run(context.Background())
	if err != nil {
		return err
	}

	header(fmt.Sprintf("%s after %d steps", name, result.StepsTaken))
	for i, b := range exp.Accelerator().Beams() {
		stats := b.Emittance(axis)
		fmt.Printf("\nbeam %d: %d particles, emittance %.4e\n", i, b.Len(), stats.Emittance)
		fmt.Println(analysis.PhasePortraitToASCII(analysis.PhaseSpace(b, axis), 60, 20))
	}
	return nil
}

func dumpAccelerator(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	acc, err := experiment.Build(experiment.NewRegistry(), cfg)
	if err != nil {
		return err
	}

	r := render.NewText(os.Stdout)
	if outFile != "" {
		r, err = render.NewTextFile(outFile)
		if err != nil {
			return err
		}
		defer r.Close()
	}
	return writeDump(acc, r, svgFile)
}

// writeDump draws acc once into r and, when svgPath is set, as a top view
// into that file. The accelerator record already lists its ring, beams and
// particles.
func writeDump(acc *accelerator.Accelerator, r render.Renderer, svgPath string) error {
	if err := render.Draw(acc, r); err != nil {
		return err
	}
	if svgPath == "" {
		return nil
	}
	svg, err := render.NewSVGFile(svgPath, 800, 800)
	if err != nil {
		return err
	}
	if err := render.Draw(acc, svg); err != nil {
		svg.Close()
		return err
	}
	return svg.Close()
}

func watchSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	build := experiment.Builder(experiment.NewRegistry(), cfg)
	m, err := viz.NewMonitor(name, build, sim.Config{Dt: cfg.Dt, Steps: cfg.Steps, SampleEvery: cfg.SampleEvery})
	if err != nil {
		return err
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return m.Err()
}

func scanLattice(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sweep := &automation.ParameterSweep{
		Base:      cfg,
		ParamName: scanParam,
		ParamMin:  scanFrom,
		ParamMax:  scanTo,
		NumPoints: scanN,
	}
	fmt.Printf("scanning %s over %d values of %s...\n", name, scanN, scanParam)
	start := time.Now()

	results, err := automation.RunSweep(context.Background(), sweep, experiment.NewRegistry())
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEPS\tSURVIVAL\tLOSSES\tMAX CENTROID\n", strings.ToUpper(scanParam))
	for _, res := range results {
		fmt.Fprintf(w, "%.5f\t%d\t%.3f\t%d\t%.3fmm\n",
			res.ParamValue,
			res.StepsTaken,
			res.Metrics["survival"],
			res.Final.Losses,
			res.Metrics["max_centroid_r"]*1e3,
		)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	header(scenario.Name)
	if scenario.Description != "" {
		fmt.Println(viz.Subtle.Render(scenario.Description))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := automation.RunScenario(ctx, scenario, experiment.NewRegistry(), os.Stdout)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRUN ID\tSTEPS\tPARTICLES\tLOSSES")
	for _, r := range results {
		runID, err := st.Save(r.Name, r.Config, r.Result)
		if err != nil {
			return err
		}
		final := r.Result.Final()
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Name, runID, r.Result.StepsTaken, final.Particles, final.Losses)
	}
	return w.Flush()
}

func runAperture(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mc := &automation.MonteCarloConfig{
		Base:      cfg,
		Radial:    apertureR,
		Vertical:  apertureZ,
		NumTrials: trials,
		Seed:      seed,
	}
	fmt.Printf("injecting %d perturbed beams into %s...\n", trials, name)
	results, err := automation.RunMonteCarlo(context.Background(), mc, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tDR (mm)\tDZ (mm)\tSURVIVAL")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%+.3f\t%+.3f\t%.3f\n", r.TrialID, r.Offset[0]*1e3, r.Offset[1]*1e3, r.Survival)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("\nstable: %d  unstable: %d\n", stable, unstable)
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(optParams) == 0 {
		return fmt.Errorf("at least one --param name=v1,v2,... is required")
	}

	names := make([]string, 0, len(optParams))
	ranges := make([][]float64, 0, len(optParams))
	for _, arg := range optParams {
		key, list, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("invalid --param %q, want name=v1,v2", arg)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("invalid --param %q: %w", arg, err)
			}
			vals = append(vals, v)
		}
		names = append(names, key)
		ranges = append(ranges, vals)
	}

	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	g.Maximize = optMaximize

	fmt.Printf("grid search on %s for %s...\n", name, optMetric)
	best, val, tried, err := g.Search(context.Background(), experiment.NewRegistry(), cfg, optMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(optMetric))
	for _, tr := range tried {
		cols := make([]string, 0, len(names)+1)
		for _, n := range names {
			cols = append(cols, strconv.FormatFloat(tr.Params[n], 'g', 6, 64))
		}
		if tr.Err != nil {
			cols = append(cols, "error: "+tr.Err.Error())
		} else {
			cols = append(cols, strconv.FormatFloat(tr.Value, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %g at", optMetric, val)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best[n])
	}
	fmt.Println()
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	lattices := config.ListLattices()
	if len(args) > 0 {
		lattices = args
	}
	for _, lat := range lattices {
		presets := config.ListPresets(lat)
		if len(presets) == 0 {
			fmt.Printf("no presets for lattice: %s\n", lat)
			continue
		}
		fmt.Printf("presets for %s:\n", lat)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}
