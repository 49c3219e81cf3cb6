// Package main отправляет в сервис данные симулированных умных часов
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"healthsignal-service/internal/config"
	"healthsignal-service/internal/models"
	"healthsignal-service/internal/simulator"
)

func main() {
	_ = config.LoadDotEnv()

	baseURL := flag.String("url", envOr("SIMULATOR_URL", "http://localhost:8080"), "service base URL")
	userID := flag.String("user", os.Getenv("SIMULATOR_USER"), "user id (random when empty)")
	interval := flag.Duration("interval", time.Minute, "time between samples")
	backfill := flag.String("backfill", "", "generate a whole day (YYYY-MM-DD), send it as one batch and print the analysis")
	seed := flag.Int64("seed", time.Now().UnixNano(), "RNG seed")
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	}

	sim := &client{base: *baseURL, user: *userID, http: &http.Client{Timeout: 30 * time.Second}}
	gen := simulator.NewGenerator(*seed, *interval)
	log.Printf("Simulating user %s against %s", *userID, *baseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *backfill != "" {
		if err := runBackfill(ctx, sim, gen, *backfill); err != nil {
			log.Fatalf("Backfill failed: %v", err)
		}
		return
	}
	runLive(ctx, sim, gen, *interval)
}

// runBackfill отправляет сутки измерений, сон и печатает анализ дня
func runBackfill(ctx context.Context, sim *client, gen *simulator.Generator, date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	samples := gen.Day(day)
	if err := sim.send(ctx, http.MethodPost, "/samples", models.SamplesBatch{Samples: samples}, nil); err != nil {
		return err
	}
	log.Printf("Sent %d samples for %s", len(samples), date)

	if err := sim.send(ctx, http.MethodPut, "/sleep/"+date, gen.Sleep(), nil); err != nil {
		return err
	}

	var rec models.DailyRecord
	if err := sim.send(ctx, http.MethodGet, "/analysis?date="+date, nil, &rec); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
	return nil
}

// runLive отправляет измерение на каждом шаге и сон раз в сутки
func runLive(ctx context.Context, sim *client, gen *simulator.Generator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastSleep := ""
	for {
		now := time.Now()
		if err := sim.send(ctx, http.MethodPost, "/samples", gen.Sample(now), nil); err != nil {
			log.Printf("Failed to send sample: %v", err)
		} else {
			log.Printf("Sent sample at %s", now.Format(time.RFC3339))
		}

		// Сон отправляется один раз за ночь, после полуночи
		date := now.Format(models.DateLayout)
		if now.Hour() == 0 && date != lastSleep {
			if err := sim.send(ctx, http.MethodPut, "/sleep/"+date, gen.Sleep(), nil); err != nil {
				log.Printf("Failed to send sleep record: %v", err)
			} else {
				lastSleep = date
			}
		}

		select {
		case <-ctx.Done():
			log.Println("Simulator stopped")
			return
		case <-ticker.C:
		}
	}
}

type client struct {
	base string
	user string
	http *http.Client
}

func (c *client) send(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/users/"+c.user+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
