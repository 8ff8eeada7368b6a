package main

import (
	"fmt"
	"log"
	"path/filepath"

	"socialchat/api"
	"socialchat/config"
	"socialchat/crypto"
	"socialchat/logger"
	"socialchat/session"
	"socialchat/store"
	"socialchat/ui"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}
	dataDir := filepath.Dir(cfgPath)

	logWriter, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("startup failed while configuring logging: %v", err)
	}
	defer logWriter.Close()

	sessionKey, err := crypto.EnsureSessionKey(cfg.SessionKeyPath)
	if err != nil {
		log.Fatalf("startup failed while preparing session key: %v", err)
	}

	sess := session.New(filepath.Join(dataDir, "session.bin"), sessionKey)
	if err := sess.Hydrate(); err != nil {
		log.Fatalf("startup failed while restoring session: %v", err)
	}

	cache, dbPath, err := store.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening cache database: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Printf("cache close error: %v", err)
		}
	}()

	client := api.NewClient(cfg.ServerURL, cfg.RequestTimeout)
	service := api.NewService(client, sess)
	auth := session.NewAuthenticator(client, sess)

	fmt.Printf("Server URL:      %s\n", cfg.ServerURL)
	fmt.Printf("Config File:     %s\n", cfgPath)
	fmt.Printf("Data Directory:  %s\n", dataDir)
	fmt.Printf("Cache Database:  %s\n", dbPath)
	if userID := sess.UserID(); userID != "" {
		fmt.Printf("Session:         restored for user %s\n", userID)
	} else {
		fmt.Println("Session:         none, login required")
	}

	if err := ui.Run(ui.RunOptions{
		Config:     cfg,
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		Session:    sess,
		Auth:       auth,
		Service:    service,
		Store:      cache,
	}); err != nil {
		log.Fatalf("run GUI: %v", err)
	}
}
