// Publishes a document into Redis for watchlight instances to pick up.
//
// Usage:
//
//	seed-docs <name> <json-document>
//	seed-docs -delete <name>
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/go-redis/redis/v8"
)

func main() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		log.Fatal("No Redis address provided")
	}

	args := os.Args[1:]
	remove := false
	if len(args) > 0 && args[0] == "-delete" {
		remove = true
		args = args[1:]
	}

	if len(args) == 0 || args[0] == "" {
		log.Fatal("No document name provided")
	}
	name := args[0]

	var document any
	if !remove {
		if len(args) < 2 {
			log.Fatal("No document payload provided")
		}
		if err := json.Unmarshal([]byte(args[1]), &document); err != nil {
			log.Fatalf("Failed parsing document payload: %v", err)
		}
	}

	canonical, err := keys.Canonicalize(keys.Key{"documents", name})
	if err != nil {
		log.Fatalf("Failed canonicalizing document key: %v", err)
	}

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed connecting to Redis: %v", err)
	}

	source := docsource.NewRedis(redisClient, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if remove {
		if err := source.Delete(ctx, canonical); err != nil {
			log.Fatalf("Failed deleting document: %v", err)
		}
		log.Printf("Deleted %s", canonical)
		return
	}

	if err := source.Put(ctx, canonical, document); err != nil {
		log.Fatalf("Failed publishing document: %v", err)
	}
	log.Printf("Published %s", canonical)
}
