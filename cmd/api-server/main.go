package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"anisync/internal/anime"
	"anisync/internal/auth"
	"anisync/internal/events"
	"anisync/internal/genre"
	"anisync/internal/jikan"
	"anisync/internal/jobs"
	"anisync/internal/watchlist"
	"anisync/pkg/database"
	"anisync/pkg/utils"
)

func main() {
	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	syncCfg := utils.LoadSyncConfig()

	// One client instance per process: its limiter is the global ceiling on
	// upstream traffic across every handler and job.
	client := jikan.NewClient(
		jikan.WithRateLimit(syncCfg.RequestsPerSecond, syncCfg.Burst),
		jikan.WithRetry(syncCfg.MaxAttempts, 2*time.Second, 10*time.Second),
		jikan.WithTimeout(syncCfg.RequestTimeout),
	)

	hub := events.NewHub()
	tcpSrv := events.NewServer(":7070", hub)

	animeRepo := anime.NewRepo(db)
	genreRepo := genre.NewRepo(db)
	svc := anime.NewService(animeRepo, genreRepo, client)

	dispatcher := jobs.NewDispatcher(svc, client, hub, syncCfg.Workers, syncCfg.QueueSize)
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcher.Start(dispatcherCtx)

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", events.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Catalog (public)
	animeHandler := anime.NewHandler(svc, animeRepo, client, dispatcher)
	animeHandler.RegisterRoutes(router)

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Sync triggers (authenticated)
	protected := router.Group("")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))
	animeHandler.RegisterSyncRoutes(protected)

	jobsHandler := jobs.NewHandler(dispatcher.Statuses())
	jobsHandler.RegisterRoutes(protected.Group("/jobs"))

	// Users (authenticated)
	users := router.Group("/users")
	users.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	users.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		u, err := authRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || u == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
		})
	})

	listRepo := watchlist.NewRepo(db)
	listHandler := watchlist.NewHandler(listRepo, animeRepo, hub)
	listHandler.RegisterRoutes(users)

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("HTTP API server listening on :8080")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}

	// Let in-flight jobs finish before the process exits.
	stopDispatcher()
	dispatcher.Stop()

	wg.Wait()
	log.Println("stopped")
}
