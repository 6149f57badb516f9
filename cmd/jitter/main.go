package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dixieflatline76/Jitter/config"
	"github.com/dixieflatline76/Jitter/pkg/api"
	"github.com/dixieflatline76/Jitter/pkg/augment"
	"github.com/dixieflatline76/Jitter/pkg/media"
	"github.com/dixieflatline76/Jitter/pkg/output"
	"github.com/dixieflatline76/Jitter/util"
	"github.com/dixieflatline76/Jitter/util/log"
)

func main() {
	addr := flag.String("addr", "", "listen address, overrides the config file")
	openForm := flag.Bool("open", false, "open the upload form in the default browser")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(config.AppName, config.AppVersion)
		return
	}

	cfg := config.GetConfig()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	log.Printf("%s %s starting, config %s", config.AppName, config.AppVersion, config.GetFilename())

	files := output.NewFileManager(cfg.OutputDir, cfg.UniqueOutputs)
	if err := files.EnsureDirs(); err != nil {
		log.Fatalf("Cannot use output directory: %v", err)
	}
	log.Printf("Writing outputs to %s", files.RootDir())

	tools := media.Tools{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath}
	if !tools.Available() {
		log.Printf("Warning: %s or %s not found, video requests will fail", cfg.FFmpegPath, cfg.FFprobePath)
	}

	font, err := augment.LoadFont(cfg.CaptionFontPath)
	if err != nil {
		log.Fatalf("Failed to load caption font: %v", err)
	}

	hub := api.NewHub()
	augmenter, err := augment.New(augment.Options{
		Files:       files,
		Tools:       tools,
		Font:        font,
		FontSize:    cfg.CaptionFontSize,
		JPEGQuality: cfg.JPEGQuality,
		Seed:        cfg.Seed,
		Progress:    hub.Progress,
	})
	if err != nil {
		log.Fatalf("Failed to create augmenter: %v", err)
	}
	if cfg.Seed != 0 {
		log.Printf("Using fixed seed %d, augmentations are reproducible", cfg.Seed)
	}

	server := api.NewServer(augmenter, files, api.Options{
		Version:           config.AppVersion,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		Tools:             tools,
		Hub:               hub,
	})

	janitor := output.NewJanitor(files, cfg.OutputRetention.Duration)
	if err := janitor.Start(cfg.PruneSchedule); err != nil {
		log.Printf("Output pruning disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CheckUpdates {
		go checkForUpdates(ctx)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.ListenAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	if *openForm {
		openBrowser("http://" + ln.Addr().String())
	}

	select {
	case err := <-serveErr:
		janitor.Stop()
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	janitor.Stop()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	<-serveErr
	log.Println("Stopped")
}

func checkForUpdates(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := util.CheckForUpdates(ctx, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		log.Debugf("Update check failed: %v", err)
		return
	}
	if result.UpdateAvailable {
		log.Printf("A newer version is available: %s (running %s) %s",
			result.LatestVersion, result.CurrentVersion, result.ReleaseURL)
	}
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Could not open browser: %v", err)
		return
	}
	go cmd.Wait()
}
