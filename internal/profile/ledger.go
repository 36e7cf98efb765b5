package profile

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/loykin/librebrowser/internal/metrics"
	"github.com/loykin/librebrowser/internal/store"
)

const ledgerTimeout = 2 * time.Second

// Info summarizes one profile directory.
type Info struct {
	Label      string         `json:"label"`
	Dir        string         `json:"dir"`
	PID        int            `json:"pid,omitempty"`
	Running    bool           `json:"running"`
	Tracked    bool           `json:"tracked"`
	LastStatus string         `json:"last_status,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
	Usage      *metrics.Usage `json:"usage,omitempty"`
}

func (m *Manager) record(ctx context.Context, rec store.Record) {
	if m.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	rec.UpdatedAt = time.Now().UTC()
	if err := m.ledger.Record(ctx, rec); err != nil {
		m.logger.Warn("record session", "label", rec.Label, "status", rec.LastStatus, "error", err)
	}
}

// recordExit updates the ledger only while it still describes this launch,
// so an exit observed after Close does not overwrite "closed".
func (m *Manager) recordExit(label, launchID string, pid int, status string) {
	if m.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	cur, err := m.ledger.GetByLabel(ctx, label)
	if err != nil || cur.LaunchID != launchID || cur.LastStatus != store.StatusLaunched {
		return
	}
	m.record(ctx, store.Record{Label: label, PID: pid, LastStatus: status, LaunchID: launchID})
}

func (m *Manager) lastLaunchID(ctx context.Context, label string) string {
	if m.ledger == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	cur, err := m.ledger.GetByLabel(ctx, label)
	if err != nil {
		return ""
	}
	return cur.LaunchID
}

// Profiles lists every profile directory with its live state, last ledger
// status and, for running engines, a resource sample. Ledger rows for
// removed profile directories are deleted along the way.
func (m *Manager) Profiles(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(m.paths.ProfilesDir())
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, err
	}
	ledger := map[string]store.Record{}
	if m.ledger != nil {
		lctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
		recs, err := m.ledger.List(lctx)
		cancel()
		if err != nil {
			m.logger.Warn("list sessions", "error", err)
		}
		for _, r := range recs {
			ledger[r.Label] = r
		}
	}

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateLabel(e.Name()) != nil {
			continue
		}
		label := e.Name()
		info := Info{Label: label, Dir: m.paths.ProfileDir(label)}
		_, info.Tracked = m.alive(label)
		if pid, ok := m.Running(label); ok {
			info.PID, info.Running = pid, true
			if u, err := metrics.Sample(ctx, pid); err == nil {
				info.Usage = &u
				metrics.SetProfileMemory(label, u.MemoryRSS)
			}
		}
		if r, ok := ledger[label]; ok {
			info.LastStatus = r.LastStatus
			ts := r.UpdatedAt
			info.UpdatedAt = &ts
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	m.pruneLedger(ctx, ledger, out)
	return out, nil
}

// pruneLedger drops ledger rows whose profile directory is gone, so the
// ledger never outlives the profile it describes.
func (m *Manager) pruneLedger(ctx context.Context, ledger map[string]store.Record, listed []Info) {
	if m.ledger == nil || len(ledger) == 0 {
		return
	}
	for _, info := range listed {
		delete(ledger, info.Label)
	}
	for label := range ledger {
		if _, err := os.Stat(m.paths.ProfileDir(label)); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
		if err := m.ledger.Delete(lctx, label); err != nil {
			m.logger.Warn("prune session", "label", label, "error", err)
		} else {
			m.logger.Debug("pruned session without profile dir", "label", label)
		}
		cancel()
	}
}
