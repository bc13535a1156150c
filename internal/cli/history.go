package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/pkg/adapters/file"
	"github.com/DJA-prog/serialmacro/pkg/adapters/redis"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// History writes the most recent runs, newest first. limit <= 0 lists all.
func History(ctx context.Context, w io.Writer, s *config.Settings, limit int) error {
	var store ports.RunStore
	if s.Redis.Addr != "" {
		rs := redis.New(s.Redis.Addr, s.Redis.Password, s.Redis.DB)
		defer rs.Close()
		store = rs
	} else {
		store = file.New(s.HistoryDir())
	}

	runs, err := store.List(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-20s %-10s %s", r.StartedAt.Local().Format(time.DateTime), r.Macro, r.State, r.ID)
		if r.Reason != "" {
			line += "  (" + r.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
