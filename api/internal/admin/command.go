package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peer-review/api/internal/ledger"
)

const pendingPrefix = "admin:pending:"

type Kind string

const (
	DeleteIndex Kind = "delete_index"
	DeleteGroup Kind = "delete_group"
	Clear       Kind = "clear"
)

type Command struct {
	Kind   Kind   `json:"kind"`
	Index  int    `json:"index,omitempty"`
	Group  string `json:"group,omitempty"`
	Module string `json:"module,omitempty"`
}

// Pending is an armed command waiting for confirmation. For delete_index,
// Target is the record that sat at Index when the command was armed.
type Pending struct {
	Token     string         `json:"token"`
	Command   Command        `json:"command"`
	Target    *ledger.Record `json:"target,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type Outcome struct {
	Command Command        `json:"command"`
	Deleted int            `json:"deleted"`
	Record  *ledger.Record `json:"record,omitempty"`
}

// normalize validates cmd and, for delete_index, resolves the record the
// index points at right now.
func (c *Console) normalize(ctx context.Context, cmd Command) (Command, *ledger.Record, error) {
	switch cmd.Kind {
	case DeleteIndex:
		records, err := c.Ledger.Load(ctx)
		if err != nil {
			return cmd, nil, err
		}
		if cmd.Index < 0 || cmd.Index >= len(records) {
			return cmd, nil, fmt.Errorf("%w: %d of %d", ledger.ErrIndexOutOfRange, cmd.Index, len(records))
		}
		target := records[cmd.Index]
		return Command{Kind: DeleteIndex, Index: cmd.Index}, &target, nil
	case DeleteGroup:
		group := strings.TrimSpace(cmd.Group)
		if group == "" {
			return cmd, nil, fmt.Errorf("%w: group is required", ErrInvalidCommand)
		}
		return Command{Kind: DeleteGroup, Group: group, Module: moduleLabel(cmd.Module)}, nil, nil
	case Clear:
		return Command{Kind: Clear}, nil, nil
	default:
		return cmd, nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
}

// Arm validates cmd and stores it until ArmTTL passes. Nothing is changed
// until Confirm is called with the returned token.
func (c *Console) Arm(ctx context.Context, cmd Command) (Pending, error) {
	cmd, target, err := c.normalize(ctx, cmd)
	if err != nil {
		return Pending{}, err
	}
	p := Pending{
		Token:     uuid.NewString(),
		Command:   cmd,
		Target:    target,
		ExpiresAt: c.now().Add(c.ArmTTL).UTC(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Pending{}, err
	}
	if err := c.Cache.Set(ctx, pendingPrefix+p.Token, b, c.ArmTTL); err != nil {
		return Pending{}, fmt.Errorf("store pending command: %w", err)
	}
	c.Log.Info(ctx, "admin command armed", c.logFields(cmd)...)
	return p, nil
}

// Confirm executes an armed command at most once.
func (c *Console) Confirm(ctx context.Context, token string) (Outcome, error) {
	b, ok := c.Cache.Take(ctx, pendingPrefix+token)
	if !ok {
		return Outcome{}, ErrNotArmed
	}
	var p Pending
	if err := json.Unmarshal(b, &p); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrNotArmed, err)
	}
	if !c.now().Before(p.ExpiresAt) {
		return Outcome{}, ErrNotArmed
	}

	out := Outcome{Command: p.Command}
	var err error
	switch p.Command.Kind {
	case DeleteIndex:
		// The index only identifies the record at arm time; other commands
		// may have shifted rows since.
		if p.Target == nil {
			err = fmt.Errorf("%w: delete_index without target", ErrNotArmed)
			break
		}
		var ok bool
		if ok, err = c.Ledger.DeleteRecord(ctx, *p.Target); err == nil {
			if !ok {
				err = fmt.Errorf("%w: %s", ErrStaleCommand, p.Target.Key())
				break
			}
			out.Deleted, out.Record = 1, p.Target
		}
	case DeleteGroup:
		out.Deleted, err = c.Ledger.DeleteByKey(ctx, p.Command.Group, p.Command.Module)
	case Clear:
		// A ledger that no longer decodes can still be cleared.
		records, lerr := c.Ledger.Load(ctx)
		if lerr != nil {
			c.Log.Warn(ctx, "clearing unreadable ledger", zap.Error(lerr))
		}
		out.Deleted = len(records)
		err = c.Ledger.Clear(ctx)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, p.Command.Kind)
	}
	if err != nil {
		c.Log.Error(ctx, "admin command failed", append(c.logFields(p.Command), zap.Error(err))...)
		return Outcome{}, err
	}
	c.Log.Info(ctx, "admin command executed", append(c.logFields(p.Command), zap.Int("deleted", out.Deleted))...)
	return out, nil
}

func (c *Console) Cancel(ctx context.Context, token string) {
	c.Cache.Delete(ctx, pendingPrefix+token)
}
