package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// QtyPolicy selects what an upsert does to the quantity of an existing
// inventory row.
type QtyPolicy string

const (
	QtyMerge     QtyPolicy = "merge"     // add incoming qty to the stored qty
	QtyOverwrite QtyPolicy = "overwrite" // replace the stored qty
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string

	// Catalog provider (Bricklink) settings.
	CatalogBaseURL string
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	HTTPTimeout    time.Duration

	// Cache tuning: metadata changes rarely, inventories get re-fetched
	// during audits, so metadata keeps the long TTL.
	MetadataTTL  time.Duration
	InventoryTTL time.Duration
	CacheSize    int

	QtyPolicy QtyPolicy
}

func Load() Config {
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		DBDSN:          getenv("DB_DSN", "brickstock.db"),
		LogFile:        getenv("LOG_FILE", "./brickstock.log"),
		CatalogBaseURL: getenv("BRICKLINK_BASE_URL", "https://api.bricklink.com/api/store/v1"),
		ConsumerKey:    os.Getenv("BRICKLINK_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("BRICKLINK_CONSUMER_SECRET"),
		Token:          os.Getenv("BRICKLINK_TOKEN"),
		TokenSecret:    os.Getenv("BRICKLINK_TOKEN_SECRET"),
		HTTPTimeout:    getdur("CATALOG_HTTP_TIMEOUT", 10*time.Second),
		MetadataTTL:    getdur("CATALOG_METADATA_TTL", 24*time.Hour),
		InventoryTTL:   getdur("CATALOG_INVENTORY_TTL", 30*time.Minute),
		CacheSize:      getint("CATALOG_CACHE_SIZE", 100),
		QtyPolicy:      QtyMerge,
	}
	if os.Getenv("BRICKSTOCK_QTY_POLICY") == string(QtyOverwrite) {
		cfg.QtyPolicy = QtyOverwrite
	}

	// Never echo credentials; log only whether they are present.
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s CATALOG=%s creds=%v ttl_meta=%s ttl_inv=%s qty_policy=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.CatalogBaseURL,
		cfg.ConsumerKey != "" && cfg.TokenSecret != "",
		cfg.MetadataTTL, cfg.InventoryTTL, cfg.QtyPolicy)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("[config] ignoring bad duration %s=%q", key, v)
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[config] ignoring bad int %s=%q", key, v)
	}
	return def
}
