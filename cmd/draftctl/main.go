package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/internal/draftsync"
	"github.com/noah-isme/biodata-api/pkg/config"
	"github.com/noah-isme/biodata-api/pkg/logger"
)

// draftctl drives the draft synchronizer from the command line:
//
//	draftctl -owner <user id> pull
//	draftctl -owner <user id> -step 2 -file draft.json push
//	draftctl -owner <user id> restart
func main() {
	var (
		baseURL  string
		token    string
		ownerID  string
		dataPath string
		step     int
		retries  int
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "Biodata API base URL")
	flag.StringVar(&token, "token", os.Getenv("BIODATA_TOKEN"), "Bearer access token")
	flag.StringVar(&ownerID, "owner", "", "Draft owner user id, used to key the local cache")
	flag.StringVar(&dataPath, "file", "", "JSON object with draft data for push")
	flag.IntVar(&step, "step", 1, "Current form step for push")
	flag.IntVar(&retries, "retries", 2, "Retries on server errors")
	flag.Parse()

	command := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	if command == "" || ownerID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	remote := draftsync.NewRemoteStore(draftsync.RemoteConfig{
		BaseURL:     baseURL,
		AccessToken: token,
		Timeout:     cfg.Drafts.StoreTimeout,
		RetryCount:  retries,
	}, logr)
	local := draftsync.NewLocalCache(cfg.Drafts.LocalCacheDir, ownerID, logr)
	syncer := draftsync.NewSynchronizer(draftsync.NewTieredStore(remote, local, logr), draftsync.Config{
		Debounce: cfg.Drafts.AutosaveDebounce,
		Timeout:  cfg.Drafts.StoreTimeout,
	}, logr)

	ctx := context.Background()
	switch command {
	case "pull":
		snap, source, err := syncer.OnLoad(ctx)
		if err != nil {
			log.Fatalf("failed to load draft: %v", err)
		}
		printSnapshot(snap, source)
	case "push":
		data, err := loadDraftData(dataPath)
		if err != nil {
			log.Fatalf("failed to read draft data: %v", err)
		}
		if _, _, err := syncer.OnLoad(ctx); err != nil {
			log.Fatalf("failed to load draft: %v", err)
		}
		result := syncer.OnStepChange(ctx, step, data)
		fmt.Printf("Saved: %s (revision %d)\n", result, syncer.State().Revision)
		if result == draftsync.SavedLocal {
			fmt.Printf("Server unreachable; kept in %s\n", local.Path())
		}
	case "restart":
		if err := syncer.Restart(ctx); err != nil {
			logr.Error("restart failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Println("Draft discarded")
	default:
		log.Fatalf("unknown command %q (want pull, push or restart)", command)
	}
}

func loadDraftData(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, fmt.Errorf("-file is required for push")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%s is not a JSON object: %w", path, err)
	}
	return json.RawMessage(raw), nil
}

func printSnapshot(snap draftsync.Snapshot, source draftsync.Source) {
	fmt.Println("Draft")
	fmt.Println("=====")
	fmt.Printf("  Source: %s\n", source)
	fmt.Printf("  Step: %d\n", snap.CurrentStep)
	fmt.Printf("  Revision: %d\n", snap.Revision)
	if !snap.UpdatedAt.IsZero() {
		fmt.Printf("  Updated: %s\n", snap.UpdatedAt.Format(time.RFC3339))
	}
	if len(snap.DraftData) > 0 {
		fmt.Printf("  Data: %s\n", snap.DraftData)
	}
}
