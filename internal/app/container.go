package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/whatsapp-campaign-center/internal/config"
	"github.com/acme/whatsapp-campaign-center/internal/infra/db"
	"github.com/acme/whatsapp-campaign-center/internal/infra/redis"
	"github.com/acme/whatsapp-campaign-center/internal/lineguard"
	"github.com/acme/whatsapp-campaign-center/internal/presence"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
	"github.com/acme/whatsapp-campaign-center/internal/repository"
	pgrepo "github.com/acme/whatsapp-campaign-center/internal/repository/postgres"
	scyllarepo "github.com/acme/whatsapp-campaign-center/internal/repository/scylla"
	"github.com/acme/whatsapp-campaign-center/internal/roster"
	campaignsvc "github.com/acme/whatsapp-campaign-center/internal/service/campaign"
	inboundsvc "github.com/acme/whatsapp-campaign-center/internal/service/inbound"
	whatsappSvc "github.com/acme/whatsapp-campaign-center/internal/whatsapp"
	whatsappMock "github.com/acme/whatsapp-campaign-center/internal/whatsapp/mock"
	"github.com/acme/whatsapp-campaign-center/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		dispatchers  *dispatchers
		providers    *providers
		limiters     *limiters
		presence     *presence.Store
		resolver     *roster.Resolver
	}
}

type repositories struct {
	Contacts      repository.ContactRepository
	Campaigns     repository.CampaignRepository
	Deliveries    repository.DeliveryRepository
	Roster        repository.RosterRepository
	Conversations repository.ConversationStore
}

type services struct {
	Campaign *campaignsvc.Service
	Inbound  *inboundsvc.Service
}

type dispatchers struct {
	DeliveryDispatcher *queue.DeliveryDispatcher
	StatusPublisher    *queue.StatusPublisher
	RetryScheduler     *queue.RetryScheduler
}

type providers struct {
	WhatsApp whatsappSvc.Provider
}

type limiters struct {
	Line *lineguard.Limiter
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Contacts:      pgrepo.NewContactRepository(c.Postgres.DB()),
			Campaigns:     pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Deliveries:    pgrepo.NewDeliveryRepository(c.Postgres.DB()),
			Roster:        pgrepo.NewRosterRepository(c.Postgres.DB()),
			Conversations: scyllarepo.NewConversationStore(c.Scylla.Session()),
		}

		disp := &dispatchers{
			DeliveryDispatcher: queue.NewDeliveryDispatcher(c.Kafka, c.Config.Kafka.DeliveryTopic),
			StatusPublisher:    queue.NewStatusPublisher(c.Kafka, c.Config.Kafka.StatusTopic),
			RetryScheduler:     queue.NewRetryScheduler(c.Kafka, c.Config.Kafka.RetryTopics),
		}

		presenceStore := presence.NewStore(c.Redis.Inner(), c.Config.Presence.KeyPrefix, c.Config.Presence.TTL)
		resolver := roster.NewResolver(repos.Roster, presenceStore)

		services := &services{
			Campaign: campaignsvc.NewService(
				repos.Campaigns,
				repos.Contacts,
				repos.Deliveries,
				repos.Conversations,
				resolver,
				disp.DeliveryDispatcher,
				c.Config.Dispatch,
			),
			Inbound: inboundsvc.NewService(repos.Contacts, repos.Conversations),
		}

		providers := &providers{
			WhatsApp: whatsappMock.NewProvider(c.Config.WhatsApp),
		}

		limiters := &limiters{
			Line: lineguard.NewLimiter(c.Redis.Inner(), c.Config.Dispatch.LineLockPrefix, c.Config.Dispatch.LineLockTTL),
		}

		c.components.repositories = repos
		c.components.dispatchers = disp
		c.components.services = services
		c.components.providers = providers
		c.components.limiters = limiters
		c.components.presence = presenceStore
		c.components.resolver = resolver
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Dispatchers exposes Kafka dispatchers.
func (c *Container) Dispatchers() *dispatchers {
	c.initComponents()
	return c.components.dispatchers
}

// Providers exposes external providers.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// Limiters exposes limiter utilities.
func (c *Container) Limiters() *limiters {
	c.initComponents()
	return c.components.limiters
}

// Presence exposes the operator presence store.
func (c *Container) Presence() *presence.Store {
	c.initComponents()
	return c.components.presence
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if d := c.components.dispatchers; d != nil {
		if d.DeliveryDispatcher != nil {
			if err := d.DeliveryDispatcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dispatcher close: %w", err))
			}
		}
		if d.StatusPublisher != nil {
			if err := d.StatusPublisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("status publisher close: %w", err))
			}
		}
		if d.RetryScheduler != nil {
			if err := d.RetryScheduler.Close(); err != nil {
				errs = append(errs, fmt.Errorf("retry scheduler close: %w", err))
			}
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	c.initComponents()

	topics := []string{c.Config.Kafka.DeliveryTopic, c.Config.Kafka.StatusTopic}
	if err := c.Kafka.EnsureTopics(ctx, topics, 48, 1); err != nil {
		return err
	}

	if len(c.Config.Kafka.RetryTopics) > 0 {
		if err := c.Kafka.EnsureTopics(ctx, c.Config.Kafka.RetryTopics, 48, 1); err != nil {
			return err
		}
	}

	if c.Config.Kafka.DeadLetterTopic != "" {
		if err := c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.DeadLetterTopic}, 12, 1); err != nil {
			return err
		}
	}

	return nil
}
