package main

import (
	"context"
	"log"
	"strings"

	api "mailtask-backend/cmd/api"
	accountdomain "mailtask-backend/internal/account/domain"
	accountRepo "mailtask-backend/internal/account/repository"
	messagedomain "mailtask-backend/internal/message/domain"
	messageRepo "mailtask-backend/internal/message/repository"
	"mailtask-backend/internal/notification"
	pushDelivery "mailtask-backend/internal/push/delivery"
	pushdomain "mailtask-backend/internal/push/domain"
	pushRepo "mailtask-backend/internal/push/repository"
	syncDelivery "mailtask-backend/internal/sync/delivery"
	syncPubsub "mailtask-backend/internal/sync/pubsub"
	syncScheduler "mailtask-backend/internal/sync/scheduler"
	syncUsecase "mailtask-backend/internal/sync/usecase"
	taskDelivery "mailtask-backend/internal/task/delivery"
	taskdomain "mailtask-backend/internal/task/domain"
	taskRepo "mailtask-backend/internal/task/repository"
	taskUsecase "mailtask-backend/internal/task/usecase"
	"mailtask-backend/pkg/config"
	"mailtask-backend/pkg/database"
	"mailtask-backend/pkg/fcm"
	"mailtask-backend/pkg/gmail"
	"mailtask-backend/pkg/imapmail"
	"mailtask-backend/pkg/vault"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&accountdomain.Account{},
		&messagedomain.Message{},
		&taskdomain.Task{},
		&pushdomain.PushSubscription{},
		&pushdomain.FCMToken{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)
	messageRepository := messageRepo.NewMessageRepository(db)
	taskRepository := taskRepo.NewGormTaskRepository(db)
	subscriptionRepository := pushRepo.NewSubscriptionRepository(db)
	fcmTokenRepository := pushRepo.NewFCMTokenRepository(db)

	// Credential vault
	credentialVault := vault.New(cfg.EncryptionSecret)

	// Initialize FCM Client (optional, dispatcher works without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[FCM] Failed to initialize client (FCM channel disabled): %v", err)
			fcmClient = nil
		}
	} else {
		log.Println("[FCM] No Firebase credentials configured, FCM channel disabled")
	}

	// Notification dispatcher: Web Push + FCM, both optional
	var fcmSender notification.FCMSender
	if fcmClient != nil {
		fcmSender = fcmClient
	}
	dispatcher := notification.NewDispatcher(
		subscriptionRepository,
		fcmTokenRepository,
		fcmSender,
		cfg.VAPIDPublicKey,
		cfg.VAPIDPrivateKey,
		cfg.VAPIDSubject,
		cfg.AppBaseURL,
	)

	// Mail providers
	providers := map[accountdomain.Provider]syncUsecase.MailProvider{
		accountdomain.ProviderGmail: gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret),
		accountdomain.ProviderIMAP:  imapmail.NewService(),
	}

	// Initialize use cases (dependency injection)
	taskUsecaseInstance := taskUsecase.NewTaskUsecase(taskRepository, messageRepository)
	syncUsecaseInstance := syncUsecase.NewSyncUsecase(
		accountRepository,
		messageRepository,
		taskUsecaseInstance,
		dispatcher,
		credentialVault,
		providers,
		cfg.GooglePubSubTopic,
		cfg.SyncMaxMessages,
		cfg.SyncTimeout,
	)

	// Pub/Sub pull listener: alternative ingress for deployments that
	// cannot expose the HTTP webhook
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}

		listener, err := syncPubsub.NewListener(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, syncUsecaseInstance)
		if err != nil {
			log.Printf("[PubSub] Failed to initialize listener: %v", err)
		} else {
			go listener.Start(context.Background())
		}
	} else {
		log.Println("[PubSub] GoogleProjectID not configured, pull listener disabled")
	}

	// Periodic batched sync
	if cfg.SyncInterval > 0 {
		scheduler := syncScheduler.NewSyncScheduler(syncUsecaseInstance, cfg.SyncInterval, 20)
		scheduler.Start()
	}

	// Initialize HTTP handlers
	syncHandler := syncDelivery.NewSyncHandler(syncUsecaseInstance, cfg.WebhookToken, cfg.SyncTriggerToken)
	pushHandler := pushDelivery.NewPushHandler(subscriptionRepository, fcmTokenRepository)
	taskHandler := taskDelivery.NewTaskHandler(taskUsecaseInstance)

	handler := api.NewHandler(cfg, syncHandler, pushHandler, taskHandler)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
