package main

import (
	"os"

	bookingshandler "lenspool/internal/bookings/handler"
	bookingsrepo "lenspool/internal/bookings/repository"
	bookingsservice "lenspool/internal/bookings/service"
	"lenspool/internal/bookings/validator"
	"lenspool/internal/calendar"
	custodyhandler "lenspool/internal/custody/handler"
	custodyservice "lenspool/internal/custody/service"
	"lenspool/internal/notify"
	reportshandler "lenspool/internal/reports/handler"
	reportsservice "lenspool/internal/reports/service"
	unitshandler "lenspool/internal/units/handler"
	unitsrepo "lenspool/internal/units/repository"
	unitsservice "lenspool/internal/units/service"
	"lenspool/pkg/app"
	"lenspool/pkg/config"
	"lenspool/pkg/contracts"
	"lenspool/pkg/kafka"
	kafka_config "lenspool/pkg/kafka/config"
	kafkamiddleware "lenspool/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	producer := initProducer(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Warn("Failed to close Kafka producer", "error", err)
			}
		}()
	}

	handlers := initHandlers(cfg, producer)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

// initProducer builds the notifications producer. Without a configured
// broker the service runs fine; events are logged and dropped.
func initProducer(cfg *config.Config) *kafka.Producer {
	if os.Getenv(kafka_config.EnvKafkaBrokers) == "" {
		cfg.Log.Info("No Kafka brokers configured, notifications will be logged only")
		return nil
	}

	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic, cfg.NotificationsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafkamiddleware.MetricsProducerMiddleware())
	}

	cfg.Log.Info("Kafka producer initialized",
		"brokers", kafkaCfg.Brokers,
		"topic", cfg.NotificationsTopic,
	)
	return producer
}

func initHandlers(cfg *config.Config, producer *kafka.Producer) []contracts.Handler {
	var dispatcher notify.Dispatcher
	if producer != nil {
		dispatcher = notify.NewKafkaDispatcher(producer, cfg.Log, ServiceName)
	} else {
		dispatcher = notify.NewNopDispatcher(cfg.Log)
	}

	var calendarSync calendar.Sync
	if cfg.CalendarBaseURL != "" {
		calendarSync = calendar.NewHTTPSync(cfg.CalendarBaseURL, cfg.Log)
		cfg.Log.Info("Calendar sync enabled", "base_url_set", true)
	} else {
		calendarSync = calendar.NewDisabledSync()
		cfg.Log.Info("Calendar sync disabled")
	}

	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)
	lockRepo := bookingsrepo.NewUnitLockRepository(cfg)
	unitRepo := unitsrepo.NewMongoUnitRepository(cfg)
	availability := bookingsservice.NewAvailabilityEngine(bookingRepo)

	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		lockRepo,
		unitRepo,
		availability,
		bookingValidator,
		dispatcher,
		calendarSync,
		cfg,
	)
	custodyService := custodyservice.NewCustodyService(bookingRepo, lockRepo, unitRepo, dispatcher, calendarSync, cfg)
	unitService := unitsservice.NewUnitService(unitRepo, cfg)
	reportService := reportsservice.NewReportService(bookingRepo, unitRepo, cfg)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		custodyhandler.NewCustodyHandler(custodyService, cfg.Log),
		unitshandler.NewUnitHandler(unitService, cfg.Log),
		reportshandler.NewReportHandler(reportService, cfg.Log),
	}
}
