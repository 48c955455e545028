package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillforge/quillforge/app/repository"
	"github.com/quillforge/quillforge/internal/pkg/cache"
	"github.com/quillforge/quillforge/internal/pkg/database"
	"github.com/quillforge/quillforge/internal/pkg/env"
	"github.com/quillforge/quillforge/internal/pkg/jobqueue"
	"github.com/quillforge/quillforge/internal/pkg/textstore"
	"github.com/quillforge/quillforge/internal/pkg/transformer"
)

// The worker process consumes humanization jobs from the queue. It shares
// database and cache setup with the web process but runs no HTTP server.
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	store, err := textstore.GetClient()
	if err != nil {
		log.Fatalf("text store unavailable: %v", err)
	}

	processor := jobqueue.NewHumanizeProcessor(
		repository.GetGlobalFactory().GetJobRepository(),
		store,
		transformer.NewClientFromEnv(),
	)

	manager := jobqueue.GetManager(processor)
	manager.Start()
	log.Println("worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down worker...")
	manager.Stop()
	log.Println("worker stopped")
}
