// RUNK - humanized directional input scheduler
// Drives randomized WASD key presses through ydotoold to emulate plausible
// human movement input on Wayland.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"runk/internal/api"
	"runk/internal/autostart"
	"runk/internal/config"
	"runk/internal/engine"
	"runk/internal/tray"
)

var (
	version      = "1.0.0"
	showVer      = flag.Bool("version", false, "Show version")
	reset        = flag.Bool("reset", false, "Delete current.json (next launch reseeds from Default.json)")
	listPresets  = flag.Bool("list-presets", false, "List available presets")
	loadPreset   = flag.String("preset", "", "Load the named preset into the current config")
	startNow     = flag.Bool("start", false, "Start the engine immediately")
	noTray       = flag.Bool("no-tray", false, "Run headless, without the system tray")
	setAutostart = flag.String("autostart", "", "Enable or disable start-on-login (on|off)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("runk version %s\n", version)
		return
	}

	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	if *reset {
		if err := cfgMgr.Reset(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		fmt.Printf("Reset complete: deleted %s\n", cfgMgr.Path())
		return
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	if err := cfgMgr.EnsureDefaultPresets(); err != nil {
		log.Printf("Warning: failed to seed presets: %v", err)
	}

	if *listPresets {
		for _, name := range cfgMgr.ListPresets() {
			fmt.Println(name)
		}
		return
	}

	if *loadPreset != "" {
		if err := cfgMgr.LoadPreset(*loadPreset); err != nil {
			log.Fatalf("Failed to load preset: %v", err)
		}
		fmt.Printf("Loaded preset: %s\n", *loadPreset)
		return
	}

	switch *setAutostart {
	case "":
	case "on":
		if err := autostart.Enable(); err != nil {
			log.Fatalf("Failed to enable autostart: %v", err)
		}
		fmt.Println("Autostart enabled")
		return
	case "off":
		if err := autostart.Disable(); err != nil {
			log.Fatalf("Failed to disable autostart: %v", err)
		}
		fmt.Println("Autostart disabled")
		return
	default:
		log.Fatalf("Invalid -autostart value %q (want on or off)", *setAutostart)
	}

	runService(cfgMgr)
}

func runService(cfgMgr *config.Manager) {
	log.Printf("RUNK %s starting...", version)

	eng := engine.New()

	// Single status sink shared by every control surface.
	var (
		apiServer *api.Server
		trayUI    *tray.Tray
		pauseItem = -1
	)
	onStatus := func(status string) {
		log.Printf("Engine: %s", status)
		if apiServer != nil {
			apiServer.BroadcastStatus(status, eng.RunID())
		}
		if trayUI != nil {
			trayUI.SetTooltip("RUNK — " + status)
			if pauseItem >= 0 {
				if status == engine.StatusPaused {
					trayUI.SetItemTitle(pauseItem, "Resume")
					trayUI.SetItemChecked(pauseItem, true)
				} else {
					trayUI.SetItemTitle(pauseItem, "Pause")
					trayUI.SetItemChecked(pauseItem, false)
				}
			}
		}
	}
	start := func() {
		eng.Start(cfgMgr.Get(), onStatus)
	}

	// onStatus runs on the engine's loop goroutine, so every surface the
	// closure reads must be fully wired before anything can start a run:
	// tray and menu first, then the API server, then -start.
	if !*noTray {
		trayUI = tray.New("RUNK — " + eng.Status())
		trayUI.AddMenuItem("Start", start)
		pauseItem = trayUI.AddMenuItem("Pause", eng.TogglePause)
		trayUI.AddMenuItem("Stop", eng.Stop)
		trayUI.AddSeparator()
		trayUI.AddMenuItem("Quit", func() {
			eng.Stop()
			trayUI.Stop()
		})
	}

	if err := cfgMgr.Watch(); err != nil {
		log.Printf("Warning: config watch unavailable: %v", err)
	}
	defer cfgMgr.CloseWatch()

	cfg := cfgMgr.Get()
	if cfg.Service.APIEnabled {
		apiServer = api.NewServer(cfgMgr, eng, start)
		defer apiServer.Close()
		go func() {
			if err := apiServer.Start(cfg.Service.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	if *startNow {
		start()
	}

	// Stop the engine on SIGINT/SIGTERM so no daemon process leaks.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if *noTray {
		<-sigCh
		log.Println("Shutting down...")
		eng.Stop()
		return
	}

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		eng.Stop()
		trayUI.Stop()
	}()

	trayUI.Run()
	eng.Stop()
}
