package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Package config provides configuration management for the Jitter service

// Config struct to hold all configuration data
type Config struct {
	ListenAddr        string   `json:"listen_addr"`
	OutputDir         string   `json:"output_dir"`
	UniqueOutputs     bool     `json:"unique_outputs"`
	JPEGQuality       int      `json:"jpeg_quality"`
	CaptionFontSize   float64  `json:"caption_font_size"`
	CaptionFontPath   string   `json:"caption_font_path"`
	MaxUploadMB       int64    `json:"max_upload_mb"`
	MaxConcurrentJobs int64    `json:"max_concurrent_jobs"`
	FFmpegPath        string   `json:"ffmpeg_path"`
	FFprobePath       string   `json:"ffprobe_path"`
	Seed              uint64   `json:"seed"`
	OutputRetention   Duration `json:"output_retention"`
	PruneSchedule     string   `json:"prune_schedule"`
	CheckUpdates      bool     `json:"check_updates"`
}

var (
	instance *Config
	once     sync.Once
)

// GetConfig returns the singleton instance of Config.
func GetConfig() *Config {
	once.Do(func() {
		cfg, err := Load(GetFilename())
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Println("Error loading config:", err)
			}
			cfg = Default()
		}
		cfg.applyEnv()
		instance = cfg
	})
	return instance
}

// ResetConfig drops the singleton so the next GetConfig call reloads it.
func ResetConfig() {
	once = sync.Once{}
	instance = nil
}

// GetFilename returns the path to the user's config file
func GetFilename() string {
	return filepath.Join(GetPath(), "config.json")
}

// GetPath returns the path to the user's config directory
func GetPath() string {
	return filepath.Join(homeDir(), "."+strings.ToLower(AppName))
}

// DefaultOutputDir returns <home>/augmented_videos.
func DefaultOutputDir() string {
	return filepath.Join(homeDir(), OutputSubDir)
}

func homeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Error getting user home directory: %v", err)
	}
	return homeDir
}

// Default returns a Config populated with default values.
func Default() *Config {
	c := &Config{}
	c.setDefaultValues()
	return c
}

// Load reads the config file at filename. Fields missing from the file keep their defaults.
func Load(filename string) (*Config, error) {
	c := Default()
	if err := c.loadFromFile(filename); err != nil {
		return nil, err
	}
	c.normalize()
	return c, nil
}

// loadFromFile loads configuration from the specified file
func (c *Config) loadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err // Return the error for handling in GetConfig()
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return nil
}

// setDefaultValues sets default values for the configuration
func (c *Config) setDefaultValues() {
	c.ListenAddr = "127.0.0.1:7860"
	c.OutputDir = DefaultOutputDir()
	c.UniqueOutputs = true
	c.JPEGQuality = 95
	c.CaptionFontSize = 24
	c.CaptionFontPath = ""
	c.MaxUploadMB = 200
	c.MaxConcurrentJobs = 2
	c.FFmpegPath = "ffmpeg"
	c.FFprobePath = "ffprobe"
	c.Seed = 0
	c.OutputRetention = Duration{24 * time.Hour}
	c.PruneSchedule = "@every 1h"
	c.CheckUpdates = true
}

// normalize repairs out-of-range values read from disk.
func (c *Config) normalize() {
	d := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = d.JPEGQuality
	}
	if c.CaptionFontSize <= 0 {
		c.CaptionFontSize = d.CaptionFontSize
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = d.MaxUploadMB
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = d.FFmpegPath
	}
	if c.FFprobePath == "" {
		c.FFprobePath = d.FFprobePath
	}
	if c.OutputRetention.Duration < 0 {
		c.OutputRetention.Duration = 0
	}
	if c.PruneSchedule == "" {
		c.PruneSchedule = d.PruneSchedule
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Save saves the current configuration to the user's config file
func (c *Config) Save() error {
	return c.SaveTo(GetFilename())
}

// SaveTo writes the configuration to cfgFile, creating its directory.
func (c *Config) SaveTo(cfgFile string) error {
	if err := os.MkdirAll(filepath.Dir(cfgFile), 0700); err != nil { // Ensure the directory exists
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ") // Use indentation for readability
	if err != nil {
		return fmt.Errorf("encoding config data: %w", err)
	}

	if err := os.WriteFile(cfgFile, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
