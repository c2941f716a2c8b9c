package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "strings"  // strings normalizes driver names
    "time"     // time expresses the business windows

    "github.com/joho/godotenv" // optional .env file support
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    LogLevel       string // zap level: debug, info, warn, error
    DBDriver       string // "mysql" or "sqlite"
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    SQLitePath     string // database file when DBDriver is sqlite
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    QRSecret           string // HMAC secret for the payload embedded in ticket QR images
    CancelWindowHours  int    // users must cancel at least this long before the event
    CheckInLeadMinutes int    // check-in opens this long before the event starts
    MaxTickets         int    // upper bound for tickets per reservation

    RabbitMQURL      string // AMQP url; empty disables lifecycle publishing
    ConsumerEnabled  bool   // run the audit log consumer inside the API process
    AuditLogDir      string // directory of the consumer's reservations.log

    TicketBucket       string // S3 bucket for rendered tickets; empty disables archiving
    AWSRegion          string // AWS region of the bucket
    AWSAccessKeyID     string // optional static credentials
    AWSSecretAccessKey string // optional static credentials
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // .env is optional; real env vars win

    cfg := Config{
        Env:            must("APP_ENV"),                   // environment (dev/test/prod)
        Port:           must("APP_PORT"),                  // port to bind the HTTP server
        LogLevel:       getenv("LOG_LEVEL", "info"),       // log verbosity
        DBDriver:       strings.ToLower(getenv("DB_DRIVER", "mysql")),
        SQLitePath:     getenv("SQLITE_PATH", "reservations.db"),
        JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

        CancelWindowHours:  envInt("CANCEL_WINDOW_HOURS", 24),
        CheckInLeadMinutes: envInt("CHECKIN_LEAD_MINUTES", 120),
        MaxTickets:         envInt("MAX_TICKETS_PER_RESERVATION", 10),

        RabbitMQURL:     os.Getenv("RABBITMQ_URL"),
        ConsumerEnabled: envBool("QUEUE_CONSUMER_ENABLED", true),
        AuditLogDir:     getenv("AUDIT_LOG_DIR", "logs"),

        TicketBucket:       os.Getenv("TICKET_ARCHIVE_BUCKET"),
        AWSRegion:          getenv("AWS_REGION", "us-east-1"),
        AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
        AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
    }
    // the QR secret falls back to the JWT secret so a minimal setup works
    cfg.QRSecret = getenv("QR_SECRET", cfg.JWTSecret)

    switch cfg.DBDriver {
    case "mysql":
        cfg.DBUser = must("DB_USER")    // database user
        cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
        cfg.DBHost = must("DB_HOST")    // database host
        cfg.DBPort = must("DB_PORT")    // database port
        cfg.DBName = must("DB_NAME")    // database name
    case "sqlite":
    default:
        log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
    }
    return cfg
}

// CancelWindow returns the cancellation window as a duration.
func (c Config) CancelWindow() time.Duration {
    return time.Duration(c.CancelWindowHours) * time.Hour
}

// CheckInLead returns how long before the start check-in opens.
func (c Config) CheckInLead() time.Duration {
    return time.Duration(c.CheckInLeadMinutes) * time.Minute
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
