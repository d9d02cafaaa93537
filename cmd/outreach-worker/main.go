package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vipul43/kiwis-outreach/internal/config"
	"github.com/vipul43/kiwis-outreach/internal/database"
	"github.com/vipul43/kiwis-outreach/internal/events"
	"github.com/vipul43/kiwis-outreach/internal/gmail"
	"github.com/vipul43/kiwis-outreach/internal/handler"
	"github.com/vipul43/kiwis-outreach/internal/openrouter"
	"github.com/vipul43/kiwis-outreach/internal/repository"
	"github.com/vipul43/kiwis-outreach/internal/scheduler"
	"github.com/vipul43/kiwis-outreach/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Println("Database connected successfully")

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	log.Println("Migrations completed successfully")

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	emailRepo := repository.NewEmailRepository(db)

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		log.Printf("Publishing events to exchange %s", events.ExchangeName)
	}

	// Initialize Gmail client and credential manager
	gmailClient := gmail.NewClient(cfg.GmailClientID, cfg.GmailClientSecret)
	credentials := service.NewCredentialManager(accountRepo, gmailClient, seconds(cfg.TokenExpirySkew))

	// Initialize OpenRouter client (optional)
	var generator service.ContentGenerator
	if cfg.OpenRouterAPIKey != "" {
		aiClient := openrouter.NewClient(cfg.OpenRouterAPIKey)
		if cfg.OpenRouterModel != "" {
			aiClient.SetModel(cfg.OpenRouterModel)
			log.Printf("Using OpenRouter model %s", cfg.OpenRouterModel)
		}
		generator = aiClient
	}

	// Initialize scheduler and campaign service
	cursor := service.NewContactCursor(contactRepo)
	sched := scheduler.New(
		campaignRepo,
		cursor,
		emailRepo,
		credentials,
		gmailClient,
		generator,
		publisher,
		scheduler.NewCron(),
		scheduler.Options{
			Interval:       seconds(cfg.DispatchInterval),
			CheckInterval:  seconds(cfg.ScheduleCheckInterval),
			SendTimeout:    seconds(cfg.SendTimeout),
			MaxAttempts:    cfg.MaxSendAttempts,
			SendsPerMinute: cfg.MailboxSendsPerMinute,
		},
	)
	campaignService := service.NewCampaignService(campaignRepo, contactRepo, cursor, sched.Transitioner(), sched)

	// Initialize HTTP server
	router := handler.NewRouter(
		handler.NewCampaignHandler(campaignService),
		handler.NewCredentialHandler(credentials),
		handler.NewHealthHandler(sqlDB, sched.Registry()),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sched.Run(groupCtx)
	})

	group.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Println("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.ShutdownTimeout))
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	// Wait for the group, bounding shutdown once the context is cancelled
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-waitAfter(ctx, seconds(cfg.ShutdownTimeout)):
		log.Println("Shutdown timeout exceeded")
	}

	log.Println("Application stopped")
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// waitAfter fires timeout after ctx is done
func waitAfter(ctx context.Context, timeout time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		time.Sleep(timeout)
		close(ch)
	}()
	return ch
}
