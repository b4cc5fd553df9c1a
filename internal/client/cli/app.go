package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gposync"
	"github.com/dmitrijs2005/gposync/internal/buildinfo"
	"github.com/dmitrijs2005/gposync/internal/client/config"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

type App struct {
	config *config.Config
	client *gposync.Client
	out    io.Writer
	reader *bufio.Reader
	now    func() time.Time
}

// NewApp prompts for missing credentials and opens the sync client.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	reader := bufio.NewReader(os.Stdin)
	if c.Username == "" {
		name, err := GetSimpleText(reader, "Username:", os.Stdout)
		if err != nil {
			return nil, err
		}
		c.Username = name
	}
	if c.Password == "" {
		pw, err := GetPassword(os.Stdout)
		if err != nil {
			return nil, err
		}
		c.Password = pw
	}

	opts, err := clientOptions(c, logger)
	if err != nil {
		return nil, err
	}
	client, err := gposync.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: client, out: os.Stdout, reader: reader, now: time.Now}, nil
}

func clientOptions(c *config.Config, logger logging.Logger) (gposync.Options, error) {
	policy, err := gposync.ParseConflictPolicy(c.ConflictPolicy)
	if err != nil {
		return gposync.Options{}, err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = buildinfo.UserAgent()
	}
	return gposync.Options{
		ServerURL:   c.ServerURL,
		Username:    c.Username,
		Password:    c.Password,
		Session:     c.Auth == "session",
		Device:      c.Device,
		UserAgent:   ua,
		HTTPTimeout: c.HTTPTimeout,
		Store: gposync.StoreOptions{
			DSN:         c.DatabaseDSN,
			Checkpoints: c.CheckpointBackend,
			PostgresDSN: c.PostgresDSN,
			S3: gposync.S3Options{
				Bucket:       c.S3.Bucket,
				Prefix:       c.S3.Prefix,
				Region:       c.S3.Region,
				BaseEndpoint: c.S3.Endpoint,
				AccessKey:    c.S3.AccessKey,
				SecretKey:    c.S3.SecretKey,
			},
		},
		Logger: logger,
		Policy: policy,
	}, nil
}

// Run executes args as a single command, or starts the interactive shell
// when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.client.Close()
	if len(args) > 0 {
		return a.exec(ctx, args)
	}
	fmt.Fprintln(a.out, "gpo shell (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) status() string {
	return a.client.Account() + "@" + a.client.Device()
}
