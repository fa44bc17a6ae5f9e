// cmd/server/main.go
package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/joho/godotenv"

    "github.com/unclebandit/outreach-backend/internal/controller"
    "github.com/unclebandit/outreach-backend/internal/db"
    "github.com/unclebandit/outreach-backend/internal/initiator"
    "github.com/unclebandit/outreach-backend/internal/repository"
    "github.com/unclebandit/outreach-backend/internal/scheduler"
    "github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
    // Load .env
    if err := godotenv.Load(); err != nil {
        log.Println("⚠️ No .env file found, relying on OS environment variables")
    }

    // Init DB
    dbConn := db.Init()

    campaignRepo := &repository.CampaignRepository{DB: dbConn}
    leadRepo := &repository.LeadRepository{DB: dbConn}
    contactRepo := &repository.ContactRepository{DB: dbConn}

    // Dispatch through RabbitMQ when configured, otherwise simulate in-process.
    var contactInit initiator.ContactInitiator
    if url := os.Getenv("AMQP_URL"); url != "" {
        amqpInit, err := initiator.NewAMQPInitiator(url)
        if err != nil {
            log.Fatal("Failed to connect to RabbitMQ:", err)
        }
        defer amqpInit.Close()
        contactInit = amqpInit
    } else {
        log.Println("⚠️ AMQP_URL not set, using simulated in-process channel")
        contactInit = initiator.NewLocalInitiator(time.Now().UnixNano())
    }

    supervisor := scheduler.NewSupervisor(campaignRepo, leadRepo, contactRepo, contactInit)

    campaignService := &service.CampaignService{
        CampaignRepo: campaignRepo,
        LeadRepo:     leadRepo,
        Supervisor:   supervisor,
    }

    campaignController := &controller.CampaignController{
        CampaignService: campaignService,
    }

    r := chi.NewRouter()

    // Campaign routes
    r.Post("/campaigns", campaignController.CreateCampaign)
    r.Get("/campaigns", campaignController.ListCampaigns)
    r.Get("/campaigns/{id}/status", campaignController.GetCampaignStatus)
    r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
    r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
    r.Post("/campaigns/{id}/stop", campaignController.StopCampaign)
    r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
    r.Post("/campaigns/{id}/leads/{leadID}/responded", campaignController.MarkResponded)
    r.Post("/campaigns/{id}/leads/{leadID}/converted", campaignController.MarkConverted)

    port := os.Getenv("PORT")
    if port == "" {
        port = "8080"
    }

    srv := &http.Server{Addr: ":" + port, Handler: r}

    go func() {
        log.Println("🚀 Server running on :" + port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal(err)
        }
    }()

    // Wait for shutdown signal, then stop workers before the HTTP server.
    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    log.Println("Shutting down...")
    supervisor.Shutdown()

    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil {
        log.Println("⚠️ Server shutdown error:", err)
    }
    log.Println("✅ Shutdown complete")
}
