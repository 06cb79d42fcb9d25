package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kzs-map/internal/utils"
)

type Config struct {
	MediaDir         string // Directory scanned for media files (non-recursive)
	CatalogPath      string // JSON catalog read and rewritten by each pass
	MediaPrefix      string // Prefix written into catalog paths, e.g. "images" -> "images/5.mp4"
	ThumbnailWidth   int
	ThumbnailQuality int
	DateLocale       string // Locale of the dateTime month/year label
	ExtractMetadata  bool   // Fill coordinates/dateTime of new entries from EXIF or exiftool
	ConvertHeic      bool   // Convert HEIC/HEIF photos to JPEG siblings during a pass

	GeocodeEndpoint   string
	GeocodeUserAgent  string
	GeocodeLanguage   string  // Optional Accept-Language header
	GeocodeRate       float64 // Requests per second
	GeocodeMaxRetries int
	GeocodeBackoff    time.Duration
	GeocodeTimeout    time.Duration

	Port                 string
	AllowedOrigins       []string
	APIKeys              []string      // API keys allowed to trigger a sync over HTTP
	CacheTTL             time.Duration // How long the served catalog document is cached
	CacheCleanupInterval time.Duration
	SyncInterval         time.Duration // Periodic sync in the server; 0 disables

	GCPProjectID        string
	GCPCredentialsPath  string
	GCPCredentialsJSON  string // Raw JSON credentials, preferred over the path when set
	PublishBucket       string // GCS bucket receiving the catalog and thumbnails after a pass
	FirestoreCollection string // Firestore collection mirroring catalog entries
	GoogleDriveFolderID string // Drive folder pulled into MediaDir before a pass
	GoogleAPIKey        string
}

// Load reads configuration from environment variables and .env file.
// It loads the .env file if present, then populates the Config struct.
// Returns an error if the configuration is invalid.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		MediaDir:         getEnv("MEDIA_DIR", "images"),
		CatalogPath:      getEnv("CATALOG_PATH", "images.json"),
		MediaPrefix:      getEnv("MEDIA_PREFIX", "images"),
		ThumbnailWidth:   getIntEnv("THUMBNAIL_WIDTH", 320),
		ThumbnailQuality: getIntEnv("THUMBNAIL_QUALITY", 90),
		DateLocale:       getEnv("DATE_LOCALE", "sl"),
		ExtractMetadata:  getBoolEnv("EXTRACT_METADATA", false),
		ConvertHeic:      getBoolEnv("CONVERT_HEIC", false),

		GeocodeEndpoint:   getEnv("GEOCODE_ENDPOINT", "https://nominatim.openstreetmap.org/reverse"),
		GeocodeUserAgent:  getEnv("GEOCODE_USER_AGENT", "kzs-map-catalog/1.0 (sticker map catalog sync)"),
		GeocodeLanguage:   getEnv("GEOCODE_LANGUAGE", ""),
		GeocodeRate:       getFloatEnv("GEOCODE_RATE", 1),
		GeocodeMaxRetries: getIntEnv("GEOCODE_MAX_RETRIES", 3),
		GeocodeBackoff:    getDurationEnv("GEOCODE_BACKOFF", time.Second),
		GeocodeTimeout:    getDurationEnv("GEOCODE_TIMEOUT", 10*time.Second),

		Port:                 getEnv("PORT", "8080"),
		AllowedOrigins:       getList("ALLOWED_ORIGINS", []string{"*"}),
		APIKeys:              getList("API_KEYS", []string{}),
		CacheTTL:             getDurationEnv("CACHE_TTL", time.Minute),
		CacheCleanupInterval: getDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		SyncInterval:         getDurationEnv("SYNC_INTERVAL", 0),

		GCPProjectID:        getEnv("GCP_PROJECT_ID", ""),
		GCPCredentialsPath:  getEnv("GCP_CREDENTIALS_PATH", ""),
		GCPCredentialsJSON:  getEnv("GCP_CREDENTIALS_JSON", ""),
		PublishBucket:       getEnv("PUBLISH_BUCKET", ""),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", ""),
		GoogleDriveFolderID: getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		GoogleAPIKey:        getEnv("GOOGLE_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set and sane.
func (c *Config) Validate() error {
	if c.MediaDir == "" {
		return fmt.Errorf("MEDIA_DIR is required")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("THUMBNAIL_WIDTH must be positive")
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("THUMBNAIL_QUALITY must be between 1 and 100")
	}
	if !utils.SupportedLocale(c.DateLocale) {
		return fmt.Errorf("DATE_LOCALE %q is not supported", c.DateLocale)
	}
	if c.GeocodeEndpoint == "" {
		return fmt.Errorf("GEOCODE_ENDPOINT is required")
	}
	if c.GeocodeUserAgent == "" {
		return fmt.Errorf("GEOCODE_USER_AGENT is required (Nominatim rejects anonymous clients)")
	}
	if c.GeocodeRate <= 0 {
		return fmt.Errorf("GEOCODE_RATE must be positive")
	}
	if c.GeocodeMaxRetries < 0 {
		return fmt.Errorf("GEOCODE_MAX_RETRIES cannot be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheCleanupInterval <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL cannot be negative")
	}
	if (c.PublishBucket != "" || c.FirestoreCollection != "") && c.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required when PUBLISH_BUCKET or FIRESTORE_COLLECTION is set")
	}
	return nil
}

// UsesGCP reports whether any Google Cloud integration is configured.
func (c *Config) UsesGCP() bool {
	return c.PublishBucket != "" || c.FirestoreCollection != "" || c.GoogleDriveFolderID != ""
}

// Retrieves an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// Retrieves a duration from environment variable or returns a default value.
// It supports both time.Duration format (e.g., "10m", "12h") and integer minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

// Retrieves a comma-separated list from environment variable or returns a default value.
func getList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return defaultValue
}

// Retrieves a boolean from environment variable or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
