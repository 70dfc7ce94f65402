package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nikolayk812/shopcore/internal/notification"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/nikolayk812/shopcore/internal/repository"
	"github.com/nikolayk812/shopcore/internal/service"
	"github.com/redis/go-redis/v9"
)

// Composition root: no global singletons, every dependency is passed
// explicitly at construction time.
func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal(err)
	}

	products := repository.NewProduct(pool)

	// Carts live in Redis when configured, otherwise next to orders in Postgres.
	var carts port.CartRepository
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()

		carts = repository.NewCartRedis(client)
	} else {
		carts = repository.NewCart(pool)
	}

	var notifier port.Notifier = notification.NewLogNotifier(logger)
	if url := os.Getenv("AMQP_URL"); url != "" {
		conn, ch, err := notification.SetupConn(url)
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()

		notifier = notification.NewPublisher(ch)
	}

	cartService := service.NewCartService(carts, products, logger)
	orderService := service.NewOrderService(repository.NewOrder(pool), products, cartService, notifier, logger)
	_ = orderService

	logger.Info("shopcore ready")
}
