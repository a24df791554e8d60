package consumers

import (
	"context"
	"fmt"

	"github.com/careops/careops-backend/internal/pharmacy/repository"
	"github.com/careops/careops-backend/pkg/logger"
	"github.com/careops/careops-backend/pkg/messaging"
)

// UserConsumer keeps the local user cache in sync with the user service
// by consuming its lifecycle events.
type UserConsumer struct {
	consumer *messaging.Consumer
	users    *repository.UserCacheRepository
	logger   *logger.Logger
}

// NewUserConsumer creates and wires a user events consumer
func NewUserConsumer(rmq *messaging.RabbitMQ, users *repository.UserCacheRepository, log *logger.Logger) (*UserConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "pharmacy.user-cache", log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user consumer: %w", err)
	}

	uc := &UserConsumer{
		consumer: consumer,
		users:    users,
		logger:   log.WithComponent("user-consumer"),
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.*"); err != nil {
		return nil, err
	}

	consumer.RegisterHandler(messaging.EventUserCreated, uc.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, uc.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, uc.handleUserDeleted)

	return uc, nil
}

// Start begins consuming user events
func (uc *UserConsumer) Start(ctx context.Context) error {
	return uc.consumer.Start(ctx)
}

func (uc *UserConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to unmarshal user.created: %w", err)
	}

	u := &repository.CachedUser{
		UserID: data.UserID,
		Name:   data.Name,
	}
	if data.Email != "" {
		u.Email = &data.Email
	}
	if data.RoleName != "" {
		u.RoleName = &data.RoleName
	}

	if err := uc.users.Set(ctx, u); err != nil {
		return fmt.Errorf("failed to cache user %s: %w", data.UserID, err)
	}

	uc.logger.Debug().Str("user_id", data.UserID).Msg("user cached")
	return nil
}

func (uc *UserConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to unmarshal user.updated: %w", err)
	}

	existing, err := uc.users.Get(ctx, data.UserID)
	if err != nil {
		// An update for a user this service has never seen is fine to
		// skip; the next created event or full sync will catch it.
		uc.logger.Debug().Str("user_id", data.UserID).Msg("update for unknown user skipped")
		return nil
	}

	if v, ok := data.Fields["name"].(string); ok {
		existing.Name = v
	}
	if v, ok := data.Fields["email"].(string); ok {
		existing.Email = &v
	}
	if v, ok := data.Fields["role_name"].(string); ok {
		existing.RoleName = &v
	}

	if err := uc.users.Set(ctx, existing); err != nil {
		return fmt.Errorf("failed to update cached user %s: %w", data.UserID, err)
	}
	return nil
}

func (uc *UserConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to unmarshal user.deleted: %w", err)
	}

	if err := uc.users.Delete(ctx, data.UserID); err != nil {
		return fmt.Errorf("failed to remove cached user %s: %w", data.UserID, err)
	}

	uc.logger.Debug().Str("user_id", data.UserID).Msg("user removed from cache")
	return nil
}
