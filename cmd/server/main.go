package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mkrecak/backstage/internal/auth"
	"github.com/mkrecak/backstage/internal/config"
	"github.com/mkrecak/backstage/internal/database"
	"github.com/mkrecak/backstage/internal/repository"
	memoryrepo "github.com/mkrecak/backstage/internal/repository/memory"
	mongorepo "github.com/mkrecak/backstage/internal/repository/mongo"
	postgresrepo "github.com/mkrecak/backstage/internal/repository/postgres"
	"github.com/mkrecak/backstage/internal/service"
	"github.com/mkrecak/backstage/internal/transport/http/handlers"
	"github.com/mkrecak/backstage/internal/transport/http/middleware"
	"github.com/mkrecak/backstage/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Persistence
	var (
		convRepo     repository.ConversationRepository
		messageRepo  repository.MessageRepository
		reactionRepo repository.ReactionRepository
	)
	switch cfg.DBDriver {
	case "postgres":
		pool, err := database.ConnectPostgres(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			log.Fatal(err)
		}
		convRepo = postgresrepo.NewConversationRepo(pool)
		messageRepo = postgresrepo.NewMessageRepo(pool)
		reactionRepo = postgresrepo.NewReactionRepo(pool)
		log.Println("Connected to postgres")
	case "memory":
		store := memoryrepo.NewStore()
		convRepo = store.Conversations()
		messageRepo = store.Messages()
		reactionRepo = store.Reactions()
		log.Println("Using in-memory store")
	default:
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Disconnect(ctx)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			log.Fatal(err)
		}
		convRepo = mongorepo.NewConversationRepo(db)
		messageRepo = mongorepo.NewMessageRepo(db)
		reactionRepo = mongorepo.NewReactionRepo(db)
		log.Println("Connected to mongo")
	}

	// Services
	convService := service.NewConversationService(convRepo)
	messageService := service.NewMessageService(messageRepo, convRepo, cfg.PersistTimeout)
	reactionService := service.NewReactionService(reactionRepo, messageRepo, convRepo)
	typingService := service.NewTypingService(convRepo)
	defer typingService.Close()
	fanoutService := service.NewFanoutService(service.LogPushSender{}, 32)
	defer fanoutService.Wait()

	// Hub carries live sessions and rooms; services publish through it.
	hub := ws.NewHub(convService)
	messageService.SetBroadcaster(hub)
	reactionService.SetBroadcaster(hub)
	typingService.SetBroadcaster(hub)
	fanoutService.SetBroadcaster(hub)

	// Cross-instance relay, only when redis is configured
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal(err)
		}
		relay := ws.NewRelay(rdb, hub)
		hub.SetRelay(relay)
		go relay.Run(ctx)
		log.Println("Broadcast relay enabled")
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	// Handlers
	conversationHandler := handlers.NewConversationHandler(convService, hub)
	groupHandler := handlers.NewGroupHandler(convService)
	messageHandler := handlers.NewMessageHandler(messageService)
	reactionHandler := handlers.NewReactionHandler(reactionService)
	fanoutHandler := handlers.NewFanoutHandler(fanoutService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.ServeWS(hub, verifier, typingService, messageService))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(verifier))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.CreateDirect)
			r.Get("/", conversationHandler.List)
			r.Get("/{id}", conversationHandler.Get)
			r.Post("/{id}/archive", conversationHandler.Archive)
			r.Get("/{id}/presence", conversationHandler.Presence)
			r.Post("/{id}/messages", messageHandler.Send)
			r.Get("/{id}/messages", messageHandler.List)
			r.Get("/{id}/unread", messageHandler.UnreadCount)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", groupHandler.Create)
			r.Patch("/{id}", groupHandler.Update)
			r.Post("/{id}/members", groupHandler.AddMember)
			r.Delete("/{id}/members/{uid}", groupHandler.RemoveMember)
			r.Post("/{id}/admins", groupHandler.PromoteAdmin)
			r.Delete("/{id}/admins/{uid}", groupHandler.DemoteAdmin)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/{id}/read", messageHandler.MarkRead)
			r.Post("/{id}/reactions", reactionHandler.Toggle)
			r.Get("/{id}/reactions", reactionHandler.List)
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(middleware.Internal(cfg.InternalToken))
		r.Post("/fanout", fanoutHandler.Trigger)
	})

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Server starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
