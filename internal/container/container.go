package container

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/platformlab/auth-service/config"
	"github.com/platformlab/auth-service/pkg/events"
	"github.com/platformlab/auth-service/pkg/ratelimit"
	"github.com/platformlab/auth-service/pkg/token"
)

// app-level container to share constructed components across packages.
// Router modules auto-wire from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client

	signer     *token.Signer
	verifier   token.Verifier
	dispatcher *events.Dispatcher
	rlStore    ratelimit.CounterStore
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config  { return cfg }
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger  { return logger }
func SetPGPool(p *pgxpool.Pool)  { pgPool = p }
func GetPGPool() *pgxpool.Pool   { return pgPool }
func SetRedis(r *redis.Client)   { redisClient = r }
func GetRedis() *redis.Client    { return redisClient }

func SetSigner(s *token.Signer)  { signer = s }
func GetSigner() *token.Signer   { return signer }
func SetVerifier(v token.Verifier) { verifier = v }
func GetVerifier() token.Verifier  { return verifier }

func SetDispatcher(d *events.Dispatcher) { dispatcher = d }
func GetDispatcher() *events.Dispatcher  { return dispatcher }

// SetRateLimitStore injects the counter store backing all route limiters
// (Redis in production, in-memory when Redis is absent).
func SetRateLimitStore(s ratelimit.CounterStore) { rlStore = s }
func GetRateLimitStore() ratelimit.CounterStore {
	if rlStore != nil {
		return rlStore
	}
	rlStore = ratelimit.NewMemoryStore()
	return rlStore
}
