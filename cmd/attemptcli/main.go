package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/client"
	"github.com/SAP-F-2025/attempt-engine/internal/config"
	"github.com/SAP-F-2025/attempt-engine/internal/events"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/session"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

func main() {
	assessmentID := flag.Uint("assessment", 0, "assessment id to attempt")
	logPath := flag.String("log", "attemptcli.log", "log file path (the terminal belongs to the UI)")
	flag.Parse()

	if *assessmentID == 0 {
		fmt.Fprintln(os.Stderr, "usage: attemptcli -assessment <id>")
		os.Exit(2)
	}

	if err := run(uint(*assessmentID), *logPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(assessmentID uint, logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	slogger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := utils.NewSlogLogger(slogger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	var drafts cache.DraftStore
	if cfg.RedisURL != "" {
		drafts, err = cache.NewRedisStoreFromURL(cfg.RedisURL, cache.DefaultDraftTTL, logger)
		if err != nil {
			return err
		}
	}

	publisher := events.NewGoChannelEventPublisher(events.PublisherConfig{
		Buffer: 64,
		Logger: slogger,
	})
	defer publisher.Close()

	ctrl := session.NewController(cfg, session.Dependencies{
		API:         client.New(cfg.APIBaseURL, cfg.APIToken, logger),
		Device:      terminalDevice(),
		Extractor:   localExtractor{},
		Transcriber: localTranscriber{},
		Drafts:      drafts,
		Publisher:   publisher,
		Logger:      logger,
	})
	defer ctrl.Teardown()

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = ctrl.Load(loadCtx, assessmentID)
	cancel()
	if err != nil {
		return err
	}

	program := tea.NewProgram(NewModel(ctrl, Options{}), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// terminalDevice stands in for real capture hardware. Terminals have no
// camera or microphone, so the simulated device produces deterministic
// frames and audio chunks.
func terminalDevice() media.Device {
	device := media.NewFakeDevice()
	device.AudioChunks = [][]byte{[]byte("chunk")}
	return device
}

// localExtractor simulates recognition for the demo binary: the
// simulated device's frames carry their text in the file name.
type localExtractor struct{}

func (localExtractor) ExtractText(_ context.Context, file *models.ImageFile) (string, error) {
	return strings.TrimSuffix(file.Name, ".png"), nil
}

// localTranscriber turns captured audio into text the same way.
type localTranscriber struct{}

func (localTranscriber) Transcribe(_ context.Context, blob *models.AudioBlob) (string, error) {
	return string(blob.Data), nil
}
