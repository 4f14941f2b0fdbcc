package main

import (
	"flag"
	"log"
	"strings"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/database"
	"github.com/0debt/expenses-service/middleware"
	"github.com/0debt/expenses-service/router"
	"github.com/0debt/expenses-service/service"

	"github.com/redis/go-redis/v9"
)

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "path to external config file (optional)")
	flag.StringVar(&configFile, "c", "", "path to external config file (shorthand)")
	flag.StringVar(&port, "port", "", "listen port, e.g. 3000 or :3000")
	flag.StringVar(&port, "p", "", "listen port (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&showVersion, "v", false, "print version (shorthand)")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("expenses-service v1.0.0")
		return
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		log.Printf("port overridden from command line: %s", port)
	}

	config.PrintConfig()

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	middleware.InitJWT(cfg)

	r := router.SetupRouter(cfg, router.Deps{
		DB:        db,
		Cache:     cache.NewRedis(rdb),
		Publisher: service.NewRedisPublisher(rdb, cfg.Redis.EventChannel),
	})

	log.Printf("expenses service listening on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
