package config

// Redis backs the per-(user,event) reservation lock, the rate limiter and
// the public catalog cache.  All three degrade gracefully without it, so
// a failed connection is reported to the caller rather than treated as
// fatal.

import (
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//   REDIS_URL – redis:// or rediss:// url (takes precedence)
//   REDIS_HOST and REDIS_PORT, or REDIS_ADDR (host:port)
//   REDIS_PASSWORD, REDIS_DB, REDIS_TLS
func RedisOptions() (*redis.Options, error) {
    if url := os.Getenv("REDIS_URL"); url != "" {
        opt, err := redis.ParseURL(url)
        if err != nil {
            return nil, fmt.Errorf("parse REDIS_URL: %w", err)
        }
        return opt, nil
    }
    addr := getenv("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    opt := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opt, nil
}

// NewRedisClient connects and pings Redis with a two second timeout.  On
// failure the client is closed and the error returned.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
    opt, err := RedisOptions()
    if err != nil {
        return nil, err
    }
    client := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
    }
    return client, nil
}
