// Command publish reads weather records as JSON lines on stdin and publishes
// each one to the MQTT ingest topic.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"weathervision/internal/config"
	"weathervision/internal/logging"
	"weathervision/internal/modules/weather/types"
	"weathervision/internal/mqtt"
)

const version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.MQTTEnabled() {
		fmt.Fprintln(os.Stderr, "MQTT_BROKER is not set")
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg, version, "weathervision-publish"))

	publisher := mqtt.NewPublisher(cfg, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = publisher.Connect(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer publisher.Disconnect()

	n, err := publishLines(os.Stdin, publisher.PublishRecord)
	slog.Info("records published", "count", n, "topic", cfg.MQTTTopic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "publish: %v\n", err)
		publisher.Disconnect()
		os.Exit(1)
	}
}

// publishLines decodes one record per non-blank line and hands it to publish.
// It stops at the first failure.
func publishLines(r io.Reader, publish func(types.RecordInput) error) (int, error) {
	scanner := bufio.NewScanner(r)
	n := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var in types.RecordInput
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := publish(in); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, scanner.Err()
}
