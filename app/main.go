package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/almuhsiny/blogapi/internal/blogservice"
	"github.com/almuhsiny/blogapi/internal/common"
	"github.com/almuhsiny/blogapi/internal/mailservice"
	"github.com/almuhsiny/blogapi/internal/userservice"
)

type application struct {
	config      *Config
	logger      *slog.Logger
	userService *userservice.UserService
	blogService *blogservice.BlogService
	mailService *mailservice.MailService
	broker      *common.MessageBroker
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.MongoURI)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	cache, err := common.NewCache(cfg.RedisURI)
	if err != nil {
		logger.Error("failed to connect to the cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.MQUser, cfg.MQPassword, cfg.MQHost, cfg.MQPort)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	err = common.SetupUserExchange(broker)
	if err != nil {
		logger.Error("failed to setup the user exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		userService: userservice.NewUserService(db, broker),
		blogService: blogservice.NewBlogService(db, cache, logger),
		broker:      broker,
		mailService: mailservice.NewMailService(broker, cfg.MailHost, cfg.MailUser, cfg.MailPassword, cfg.MailSender, cfg.MailPort, logger),
	}
	defer app.mailService.Close()

	app.mailService.SendActivationEmail()
	app.mailService.SendEmailChangeEmail()
	app.mailService.SendPasswordResetEmail()

	err = app.serve(cfg.Port)
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
