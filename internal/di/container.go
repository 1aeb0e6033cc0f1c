// Package di assembles the runtime object graph from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atelier-goods/api/internal/notifications"
	"github.com/atelier-goods/api/internal/payments"
	"github.com/atelier-goods/api/internal/platform/config"
	"github.com/atelier-goods/api/internal/platform/observability"
	"github.com/atelier-goods/api/internal/platform/orderlock"
	"github.com/atelier-goods/api/internal/repositories"
	"github.com/atelier-goods/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Ledger    services.InventoryLedger
	Packer    services.StockPacker
	Estimator services.ShippingRateEstimator
	Engine    services.AdjustmentEngine
	Activator services.PromotionActivator
	Orders    services.OrderService
	Returns   services.ReturnService
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	redis    *rd.Client
	notifier *notifications.KafkaNotifier
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// real implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, logger *zap.Logger) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg, Repositories: reg}

	locks, err := c.buildLocker(cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := c.buildNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc, err := buildServices(reg, cfg, locks, notifier, gateway, logger)
	if err != nil {
		return nil, err
	}
	c.Services = svc

	return c, nil
}

// Close releases resources such as repository clients, the redis connection,
// and the kafka writer.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.notifier != nil {
		if err := c.notifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Redis exposes the shared client for readiness probing; nil without redis config.
func (c *Container) Redis() *rd.Client { return c.redis }

func (c *Container) buildLocker(cfg config.Config) (orderlock.Locker, error) {
	if cfg.Redis.Addr == "" {
		return orderlock.NewMutex(), nil
	}
	client := rd.NewClient(&rd.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c.redis = client
	locker, err := orderlock.NewRedisLocker(client)
	if err != nil {
		return nil, fmt.Errorf("build redis locker: %w", err)
	}
	return locker, nil
}

func (c *Container) buildNotifier(cfg config.Config, logger *zap.Logger) (notifications.Notifier, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return &notifications.LogNotifier{Logger: observability.EventLogger(logger)}, nil
	}
	notifier, err := notifications.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic,
		notifications.WithErrorLogger(observability.NewPrintfAdapter(logger)))
	if err != nil {
		return nil, fmt.Errorf("build kafka notifier: %w", err)
	}
	c.notifier = notifier
	return notifier, nil
}

func buildGateway(cfg config.Config, logger *zap.Logger) (services.PaymentGateway, error) {
	if cfg.Stripe.APIKey == "" {
		manager, err := payments.NewManager(map[string]payments.Gateway{"manual": payments.NewManualGateway()},
			payments.WithDefaultGateway("manual"))
		if err != nil {
			return nil, fmt.Errorf("build payment manager: %w", err)
		}
		return manager, nil
	}
	stripe, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		APIKey:    cfg.Stripe.APIKey,
		AccountID: cfg.Stripe.AccountID,
		Logger:    observability.EventLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("build stripe gateway: %w", err)
	}
	manager, err := payments.NewManager(map[string]payments.Gateway{"stripe": stripe})
	if err != nil {
		return nil, fmt.Errorf("build payment manager: %w", err)
	}
	return manager, nil
}

func buildServices(reg repositories.Registry, cfg config.Config, locks orderlock.Locker, notifier notifications.Notifier, gateway services.PaymentGateway, logger *zap.Logger) (Services, error) {
	var svc Services
	eventLog := observability.EventLogger(logger)
	settings := services.StoreSettings{
		Currency:                 cfg.Store.Currency,
		TrackInventoryLevels:     cfg.Store.TrackInventoryLevels,
		AlwaysIncludeConfirmStep: cfg.Store.AlwaysIncludeConfirmStep,
	}

	ledger, err := services.NewInventoryLedger(services.InventoryLedgerDeps{
		StockItems: reg.StockItems(),
		Units:      reg.InventoryUnits(),
		Clock:      time.Now,
		Logger:     eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory ledger: %w", err)
	}
	svc.Ledger = ledger

	packer, err := services.NewStockPacker(services.StockPackerDeps{
		StockItems:           reg.StockItems(),
		StockLocations:       reg.StockLocations(),
		Variants:             reg.Variants(),
		Splitters:            []services.Splitter{services.NewWeightSplitter(cfg.Store.PackageWeightLimitGrams)},
		TrackInventoryLevels: cfg.Store.TrackInventoryLevels,
		Logger:               eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stock packer: %w", err)
	}
	svc.Packer = packer

	estimator, err := services.NewShippingRateEstimator(services.ShippingRateEstimatorDeps{
		ShippingMethods: reg.ShippingMethods(),
		Zones:           reg.Zones(),
		TaxRates:        reg.TaxRates(),
		Logger:          eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping estimator: %w", err)
	}
	svc.Estimator = estimator

	engine, err := services.NewAdjustmentEngine(services.AdjustmentEngineDeps{
		Promotions: reg.Promotions(),
		TaxRates:   reg.TaxRates(),
		Zones:      reg.Zones(),
		Clock:      time.Now,
		Logger:     eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build adjustment engine: %w", err)
	}
	svc.Engine = engine

	activator, err := services.NewPromotionActivator(services.PromotionActivatorDeps{
		Promotions: reg.Promotions(),
		Clock:      time.Now,
		Logger:     eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion activator: %w", err)
	}
	svc.Activator = activator

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Variants:   reg.Variants(),
		StockItems: reg.StockItems(),
		Packer:     packer,
		Estimator:  estimator,
		Engine:     engine,
		Activator:  activator,
		Ledger:     ledger,
		Gateway:    gateway,
		Notifier:   notifier,
		Locks:      locks,
		Settings:   settings,
		Clock:      time.Now,
		Logger:     eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	returns, err := services.NewReturnService(services.ReturnServiceDeps{
		Orders:     reg.Orders(),
		Returns:    reg.ReturnAuthorizations(),
		Variants:   reg.Variants(),
		StockItems: reg.StockItems(),
		Ledger:     ledger,
		Engine:     engine,
		Locks:      locks,
		Settings:   settings,
		Clock:      time.Now,
		Logger:     eventLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build return service: %w", err)
	}
	svc.Returns = returns

	return svc, nil
}
