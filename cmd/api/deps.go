package main

import (
	"context"
	"log/slog"

	"moneymind/internal/domain/advice"
	"moneymind/internal/domain/budget"
	"moneymind/internal/domain/chat"
	"moneymind/internal/domain/transaction"
	"moneymind/internal/domain/user"
	"moneymind/internal/infrastructure/firebase"
	"moneymind/internal/infrastructure/firestore"
	"moneymind/internal/infrastructure/gemini"
	httphandlers "moneymind/internal/interfaces/http"
	"moneymind/internal/shared/auth"
	"moneymind/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Store *firestore.Store
	LLM   *gemini.Client

	Handlers httphandlers.Handlers

	// Auth
	Verifier    *auth.Verifier
	UserService *user.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	app, err := firebase.NewApp(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.ProjectID, cfg.Firebase.GRPCPoolSize)
	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}
	store := firestore.New(client)
	slog.Info("Connected to Firestore", "project", app.ProjectID())

	directory, err := app.Directory(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}

	llm, err := gemini.New(ctx, gemini.Config{
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		MaxConns: cfg.LLM.MaxConns,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	// Initialize repositories
	userRepo := firestore.NewUserRepository(store)
	transactionRepo := firestore.NewTransactionRepository(store)
	budgetRepo := firestore.NewBudgetRepository(store)
	chatRepo := firestore.NewChatRepository(store)

	// Initialize domain services
	userService := user.NewService(userRepo, directory)
	transactionService := transaction.NewService(transactionRepo)
	budgetService := budget.NewService(budgetRepo)
	chatService := chat.NewService(chatRepo, llm)
	adviceService := advice.NewService(llm, transactionService, budgetService)

	// Initialize auth components
	keys := auth.NewKeyCache(auth.NewHTTPKeySource(auth.FirebaseCertsURL))
	verifier := auth.NewVerifier(keys, app.ProjectID())

	return &Dependencies{
		Store: store,
		LLM:   llm,
		Handlers: httphandlers.Handlers{
			Advice:       httphandlers.NewAdviceHandler(adviceService),
			Transactions: httphandlers.NewTransactionHandler(transactionService),
			Budgets:      httphandlers.NewBudgetHandler(budgetService),
			Chats:        httphandlers.NewChatHandler(chatService),
			Users:        httphandlers.NewUserHandler(userService),
		},
		Verifier:    verifier,
		UserService: userService,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.LLM != nil {
		d.LLM.Close()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			slog.Error("Error closing Firestore client", "error", err)
		}
	}
}
