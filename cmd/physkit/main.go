package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/physkit/internal/engine"
	"github.com/san-kum/physkit/internal/scene"
	"github.com/san-kum/physkit/internal/transport"
	"github.com/san-kum/physkit/internal/tui"
	"github.com/san-kum/physkit/internal/watch"

	_ "github.com/san-kum/physkit/internal/backend/box2d"
	_ "github.com/san-kum/physkit/internal/backend/chipmunk"
)

var (
	backend    string
	configFile string
	sceneFile  string
	ticks      int
	track      string
	watchCfg   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "physkit",
		Short: "multi-backend rigid-body physics layer",
	}

	rootCmd.PersistentFlags().StringVar(&backend, "backend", "chipmunk", "physics backend")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "engine config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&sceneFile, "scene", "", "scene file (yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "step a scene and report link state",
		RunE:  runScene,
	}
	runCmd.Flags().IntVar(&ticks, "ticks", 1000, "ticks to step")
	runCmd.Flags().StringVar(&track, "track", "", "link to plot after the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step a scene with a live terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&track, "track", "", "link to graph")
	liveCmd.Flags().BoolVar(&watchCfg, "watch", false, "re-apply the config file when it changes")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "publish scene state over websockets",
		RunE:  runServe,
	}

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list registered backends",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range engine.Backends() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, backendsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultScene is used when no scene file is given: a ground plane, a
// falling box and a world-anchored pendulum.
const defaultScene = `
models:
  - name: world
    links:
      - name: ground
        shape: plane
        static: true
  - name: crate
    links:
      - name: box
        shape: box
        position: {x: -2, y: 4}
        mass: 2
        friction: 0.6
  - name: pendulum
    links:
      - name: bob
        shape: sphere
        position: {x: 1.5, y: 6}
        radius: 0.3
        mass: 1
joints:
  - name: pivot
    type: hinge
    child: bob
    anchor: {y: 6}
`

func buildWorld() (engine.Engine, *scene.Scene, error) {
	cfg := engine.DefaultConfig()
	if configFile != "" {
		loaded, err := engine.LoadConfig(configFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if cfg.Backend == "" {
		cfg.Backend = backend
	}

	var sc *scene.Config
	var err error
	if sceneFile != "" {
		sc, err = scene.Load(sceneFile)
	} else {
		sc, err = scene.Parse([]byte(defaultScene))
	}
	if err != nil {
		return nil, nil, err
	}

	s := scene.New()
	e, err := engine.New(cfg.Backend, s)
	if err != nil {
		return nil, nil, err
	}
	if err := e.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := e.Init(); err != nil {
		return nil, nil, err
	}
	if err := s.Populate(e, sc); err != nil {
		e.Fini()
		return nil, nil, err
	}
	return e, s, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	e, s, err := buildWorld()
	if err != nil {
		return err
	}
	defer e.Fini()

	var history []float64
	start := time.Now()
	for i := 0; i < ticks; i++ {
		e.UpdateCollision()
		e.UpdatePhysics()
		if track != "" {
			if link, err := s.LinkByName(track); err == nil {
				if p, ok := link.(engine.Positioned); ok {
					history = append(history, p.Position().Y)
				}
			}
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("backend=%s ticks=%d sim=%.2fs wall=%s contacts=%d\n\n",
		e.Name(), ticks, float64(ticks)*e.GetStepTime(), elapsed.Round(time.Millisecond), e.Contacts().Size())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINK\tX\tY\tSTATIC")
	for _, name := range s.LinkNames() {
		link, err := s.LinkByName(name)
		if err != nil {
			continue
		}
		var pos engine.Vec3
		if p, ok := link.(engine.Positioned); ok {
			pos = p.Position()
		}
		static := false
		if sb, ok := link.(engine.StaticBody); ok {
			static = sb.Static()
		}
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%v\n", name, pos.X, pos.Y, static)
	}
	w.Flush()

	if len(history) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(history, asciigraph.Height(10), asciigraph.Width(60),
			asciigraph.Caption(track+" height")))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	e, s, err := buildWorld()
	if err != nil {
		return err
	}
	defer e.Fini()

	if watchCfg && configFile != "" {
		w, err := watch.New(configFile, e, log.Default())
		if err != nil {
			return err
		}
		defer w.Close()
	}

	p := tea.NewProgram(tui.NewModel(e, s, track))
	_, err = p.Run()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	e, s, err := buildWorld()
	if err != nil {
		return err
	}
	defer e.Fini()

	netCfg, err := transport.ConfigFromEnv()
	if err != nil {
		return err
	}

	logger := log.Default()
	hub := transport.NewHub(e, logger)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.HandleFunc(netCfg.Path, hub.Handle)
	srv := &http.Server{Addr: netCfg.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("serving %s on %s", netCfg.Path, netCfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("serve: %v", err)
			stop()
		}
	}()

	interval := time.Duration(e.GetStepTime() * float64(time.Second))
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.UpdateCollision()
			e.UpdatePhysics()
			hub.Publish(transport.Snapshot(e, s))
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
