// Package redis implements the booking unit lock on Redis so several API replicas
// serialize writes to the same room.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/app/policies"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewClient connects and pings with a short timeout.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	var tlsConf *tls.Config
	if opts.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// Locker holds a lease per key with SET NX PX. TTL bounds how long a crashed holder
// can block a unit; RetryEvery is the polling interval while waiting.
type Locker struct {
	Client     goredis.UniversalClient
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
}

func NewLocker(client goredis.UniversalClient, ttl time.Duration) *Locker {
	return &Locker{Client: client, Prefix: "staybook:lock:", TTL: ttl, RetryEvery: 25 * time.Millisecond}
}

func (l *Locker) Acquire(ctx context.Context, key string) (policies.Release, error) {
	if l.Client == nil {
		return nil, errors.New("redis: locker missing client")
	}
	name := l.Prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.Client.SetNX(ctx, name, token, l.ttl()).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retryEvery())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", policies.ErrLockNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.Client, []string{name}, token).Err()
		})
	}, nil
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return 10 * time.Second
	}
	return l.TTL
}

func (l *Locker) retryEvery() time.Duration {
	if l.RetryEvery <= 0 {
		return 25 * time.Millisecond
	}
	return l.RetryEvery
}

var _ policies.Locker = (*Locker)(nil)
