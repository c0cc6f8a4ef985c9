// Package admin implements the password-gated ledger console: reads,
// exports and two-step destructive commands.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peer-review/api/internal/cache"
	"peer-review/api/internal/course"
	"peer-review/api/internal/ledger"
	"peer-review/api/internal/logging"
)

const (
	DefaultSessionTTL = 8 * time.Hour
	DefaultArmTTL     = 2 * time.Minute

	sessionPrefix = "admin:session:"
)

var (
	ErrNoSecret       = errors.New("admin password is not configured")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotArmed       = errors.New("command is not armed or has expired")
	ErrInvalidCommand = errors.New("invalid command")
	ErrStaleCommand   = errors.New("armed record is no longer in the ledger")
)

type Console struct {
	Ledger     ledger.Store
	Secret     string
	Cache      cache.Cache
	SessionTTL time.Duration
	ArmTTL     time.Duration
	Log        *logging.Logger

	now func() time.Time
}

func New(store ledger.Store, secret string, c cache.Cache, log *logging.Logger) (*Console, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Console{
		Ledger:     store,
		Secret:     secret,
		Cache:      c,
		SessionTTL: DefaultSessionTTL,
		ArmTTL:     DefaultArmTTL,
		Log:        log,
		now:        time.Now,
	}, nil
}

// Login checks password against the shared secret and opens a session.
func (c *Console) Login(ctx context.Context, password string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.Secret)) != 1 {
		c.Log.Warn(ctx, "admin login rejected")
		return "", ErrUnauthorized
	}
	token := uuid.NewString()
	if err := c.Cache.Set(ctx, sessionPrefix+token, []byte("1"), c.SessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	c.Log.Info(ctx, "admin session opened")
	return token, nil
}

func (c *Console) Authorize(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if _, ok := c.Cache.Get(ctx, sessionPrefix+token); !ok {
		return ErrUnauthorized
	}
	return nil
}

func (c *Console) Logout(ctx context.Context, token string) {
	if token != "" {
		c.Cache.Delete(ctx, sessionPrefix+token)
	}
}

// Entry is a record together with its current position in the ledger;
// the position is what delete_index refers to.
type Entry struct {
	Index int `json:"index"`
	ledger.Record
}

// List returns every record, or only those of module when it is set.
func (c *Console) List(ctx context.Context, module string) ([]Entry, error) {
	records, err := c.Ledger.Load(ctx)
	if err != nil {
		return nil, err
	}
	module = moduleLabel(module)
	out := make([]Entry, 0, len(records))
	for i, r := range records {
		if module != "" && r.Module != module {
			continue
		}
		out = append(out, Entry{Index: i, Record: r})
	}
	return out, nil
}

type Stats struct {
	Total    int            `json:"total"`
	Groups   int            `json:"groups"`
	Modules  int            `json:"modules"`
	ByModule map[string]int `json:"by_module"`
}

func (c *Console) Stats(ctx context.Context) (Stats, error) {
	records, err := c.Ledger.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	groups := make(map[string]struct{})
	st := Stats{Total: len(records), ByModule: make(map[string]int)}
	for _, r := range records {
		groups[r.GroupNumber] = struct{}{}
		st.ByModule[r.Module]++
	}
	st.Groups = len(groups)
	st.Modules = len(st.ByModule)
	return st, nil
}

func (c *Console) Export(ctx context.Context, w io.Writer) error {
	return ledger.Export(ctx, c.Ledger, w)
}

// Modules lists the distinct module labels present in the ledger, sorted.
func (c *Console) Modules(ctx context.Context) ([]string, error) {
	st, err := c.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(st.ByModule))
	for m := range st.ByModule {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// moduleLabel maps a number, slug or label to the stored label. Values that
// match no known module are kept so legacy rows can still be addressed.
func moduleLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m, err := course.Parse(s); err == nil {
		return m.Label
	}
	return s
}

func (c *Console) logFields(cmd Command) []zap.Field {
	return []zap.Field{
		zap.String("kind", string(cmd.Kind)),
		zap.Int("index", cmd.Index),
		zap.String("group", cmd.Group),
		zap.String("module", cmd.Module),
	}
}
