package gposync

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
	"github.com/dmitrijs2005/gposync/internal/common"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// S3Options addresses the bucket of the s3 checkpoint backend.
type S3Options = checkpoints.S3Config

// StoreOptions selects where local state lives.
type StoreOptions struct {
	// DSN of the SQLite state database. Empty keeps all state in memory.
	DSN string
	// Checkpoints overrides the checkpoint backend; by default checkpoints
	// live next to the rest of the state.
	Checkpoints string
	PostgresDSN string
	S3          S3Options
}

func (s StoreOptions) checkpointBackend() string {
	if s.Checkpoints != "" {
		return s.Checkpoints
	}
	if s.DSN != "" {
		return BackendSQLite
	}
	return BackendMemory
}

// Options configures a Client. Username and Device are required.
type Options struct {
	// ServerURL defaults to https://gpodder.net/.
	ServerURL string
	Username  string
	Password  string
	// Session logs in once and authenticates later requests with the
	// session cookie instead of sending the password every time.
	Session bool
	Device  string

	UserAgent   string
	HTTPTimeout time.Duration
	HTTPClient  *http.Client

	Store StoreOptions

	Logger Logger
	// Policy decides subscription conflicts; nil means ServerWins.
	Policy ConflictPolicy
	Now    func() time.Time
}

func (o Options) validate() error {
	if o.Username == "" {
		return &common.ValidationError{Field: "username", Reason: "required"}
	}
	if err := models.ValidateDeviceID(o.Device); err != nil {
		return err
	}
	switch o.Store.checkpointBackend() {
	case BackendMemory:
	case BackendSQLite:
		if o.Store.DSN == "" {
			return &common.ValidationError{Field: "store dsn", Reason: "required by the sqlite checkpoint backend"}
		}
	case BackendPostgres:
		if o.Store.PostgresDSN == "" {
			return &common.ValidationError{Field: "postgres dsn", Reason: "required by the postgres checkpoint backend"}
		}
	case BackendS3:
		if o.Store.S3.Bucket == "" {
			return &common.ValidationError{Field: "s3 bucket", Reason: "required by the s3 checkpoint backend"}
		}
	default:
		return &common.ValidationError{Field: "checkpoint backend", Value: o.Store.Checkpoints, Reason: "unknown backend"}
	}
	return nil
}
