package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/config"
	"realtime-chat/internal/database"
	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/repositories/postgres"
)

// seed creates a small local dataset: a few users, a group room everybody is
// in, one private room and friendships, then prints a dev token per user.
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting database seeding...")

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	friendRepo := postgres.NewFriendRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)

	// Seed initial users
	seedUsers := []models.User{
		{Email: "admin@notify.com", Nickname: "admin"},
		{Email: "alice@notify.com", FirstName: "Alice", LastName: "Liddell"},
		{Email: "bob@notify.com", Nickname: "bob"},
		{Email: "charlie@notify.com", Nickname: "charlie"},
	}
	users := make([]*models.User, 0, len(seedUsers))
	for i := range seedUsers {
		u, err := findOrCreateUser(ctx, userRepo, &seedUsers[i])
		if err != nil {
			logger.Error("Failed to create user", "email", seedUsers[i].Email, "error", err)
			os.Exit(1)
		}
		users = append(users, u)
	}
	admin, alice, bob := users[0], users[1], users[2]

	// Group room with every user as participant and subscriber
	general := &models.Room{Name: "general", Type: models.RoomTypeGroup}
	for _, u := range users {
		general.Participants = append(general.Participants, models.RoomParticipant{UserID: u.ID})
	}
	if err := roomRepo.Create(ctx, general); err != nil {
		logger.Warn("Failed to create general room", "error", err)
	} else {
		logger.Info("Created room", "name", general.Name, "id", general.ID)
		for _, u := range users {
			if err := subRepo.Subscribe(ctx, u.ID, general.ID); err != nil {
				logger.Warn("Failed to subscribe", "userID", u.ID, "error", err)
			}
		}
		welcome := &models.Message{RoomID: general.ID, AuthorID: &admin.ID, DisplayName: admin.DisplayName(), Content: "Welcome to the general room! 👋"}
		if err := messageRepo.Create(ctx, welcome); err != nil {
			logger.Warn("Failed to create sample message", "error", err)
		}
	}

	// Private room between alice and bob
	key := models.PrivateRoomKey(alice.ID, bob.ID)
	dm := &models.Room{
		Type:       models.RoomTypePrivate,
		PrivateKey: &key,
		Participants: []models.RoomParticipant{
			{UserID: alice.ID},
			{UserID: bob.ID},
		},
	}
	if err := roomRepo.Create(ctx, dm); err != nil {
		logger.Warn("Private room might already exist", "key", key, "error", err)
	} else {
		logger.Info("Created private room", "id", dm.ID, "key", key)
	}

	// Friendships
	for _, pair := range [][2]uint{{alice.ID, bob.ID}, {alice.ID, admin.ID}, {bob.ID, users[3].ID}} {
		if err := friendRepo.Create(ctx, pair[0], pair[1]); err != nil && !errors.Is(err, repositories.ErrConflict) {
			logger.Warn("Failed to create friendship", "users", pair, "error", err)
		}
	}

	resolver := auth.NewResolver(cfg.JWT.Secret)
	for _, u := range users {
		token, err := resolver.Issue(u.ID, u.Email, 24*time.Hour)
		if err != nil {
			logger.Warn("Failed to issue dev token", "userID", u.ID, "error", err)
			continue
		}
		logger.Info("Dev token", "userID", u.ID, "email", u.Email, "token", token)
	}

	logger.Info("Database seeding completed successfully!")
}

func findOrCreateUser(ctx context.Context, repo *postgres.UserRepository, u *models.User) (*models.User, error) {
	existing, err := repo.FindByEmail(ctx, u.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if err := repo.Create(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("Created user", "email", u.Email, "id", u.ID)
	return u, nil
}
