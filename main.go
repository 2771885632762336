package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LWS49/reading-list-api/config"
	"github.com/LWS49/reading-list-api/handlers"
	"github.com/LWS49/reading-list-api/middleware"
	"github.com/LWS49/reading-list-api/service"
	"github.com/LWS49/reading-list-api/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	config.ValidateEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	ctx := context.Background()

	// The entries list always lives in the memory store; books and users
	// use Mongo unless STORE=memory.
	mem, err := store.NewMemory(cfg.DataFile)
	if err != nil {
		log.Fatal("memory store:", err)
	}

	var (
		users    store.UserStore     = mem
		books    store.BookStore     = mem
		progress store.ProgressStore = mem
	)
	switch cfg.Store {
	case "memory":
		log.Println("using in-memory store")
	case "mongo":
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			log.Fatal("mongodb:", err)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.Println("mongodb disconnect:", err)
			}
		}()
		if err := db.EnsureIndexes(ctx); err != nil {
			log.Fatal("mongodb indexes:", err)
		}
		users, books, progress = db, db, db
	default:
		log.Fatalf("unknown STORE %q (want mongo or memory)", cfg.Store)
	}

	var s3Service *service.S3Service
	if cfg.S3Enabled() {
		s3Service, err = service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			log.Fatal("s3:", err)
		}
	} else {
		log.Println("AWS_S3_BUCKET not set; cover mirroring disabled")
	}

	metadata := service.NewMetadataClient(
		cfg.OpenLibraryURL,
		"reading-list-api/1.0",
		cfg.OpenLibraryRPS,
		cfg.OpenLibraryMaxRetries,
	)

	authHandler := &handlers.AuthHandler{Users: users, JWTSecret: cfg.JWTSecret}
	booksHandler := &handlers.BooksHandler{
		Books:    books,
		Progress: progress,
		Metadata: metadata,
		S3:       s3Service,
	}
	entriesHandler := &handlers.EntriesHandler{Entries: mem}

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Shared reading list, no auth.
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", entriesHandler.List)
			r.Post("/", entriesHandler.Create)
			r.Get("/{id}", entriesHandler.Get)
			r.Patch("/{id}", entriesHandler.Update)
			r.Delete("/{id}", entriesHandler.Delete)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret, users))
			r.Post("/books", booksHandler.Create)
			r.Get("/books/list", booksHandler.List)
			r.Get("/books/{id}", booksHandler.Get)
			r.Patch("/books/{id}/update", booksHandler.Update)
			r.Delete("/books/{id}/delete", booksHandler.Delete)
			r.Post("/books/{id}/progress", booksHandler.AddProgress)
			r.Get("/books/{id}/cover", booksHandler.Cover)
		})
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("server listening on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
}
