package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Remote client contract for the "gh:pr" gate kind. A nil client makes the
// gate degrade to permanently closed rather than fail; this is the only
// gate kind with an I/O dependency.
type PRClient interface {
	IsPRMerged(ctx context.Context, owner, repo string, number int) (bool, error)
}

type prCacheEntry struct {
	open   bool
	cached time.Time
}

// gateRouter dispatches over the closed variant set from spec §4.6: timer, human, remote-PR.
// Each path is a plain function rather than an interface hierarchy because
// the kind set is fixed and known at compile time.
type gateRouter struct {
	approvals map[string]struct{}

	prClient PRClient
	prCache  map[string]prCacheEntry
	prTTL    time.Duration

	now func() time.Time
}

func newGateRouter(prClient PRClient, prTTL time.Duration) *gateRouter {
	return &gateRouter{
		approvals: make(map[string]struct{}),
		prClient:  prClient,
		prCache:   make(map[string]prCacheEntry),
		prTTL:     prTTL,
		now:       time.Now,
	}
}

// isOpen returns whether the (kind, id) gate currently admits the task.
// An empty kind/id pair always opens: "no gate" is not a gate.
func (r *gateRouter) isOpen(ctx context.Context, kind, id string) (bool, error) {
	if kind == "" && id == "" {
		return true, nil
	}

	switch kind {
	case "timer":
		return r.timerOpen(id)
	case "human":
		return r.humanOpen(id), nil
	case "gh:pr":
		return r.prOpen(ctx, id)
	default:
		return false, newErr(ErrUnknownGateKind, "unknown gate kind %q", kind)
	}
}

func (r *gateRouter) timerOpen(id string) (bool, error) {
	target, err := parseTimerID(id)
	if err != nil {
		return false, newErr(ErrBadGateID, "invalid timer gate id %q: %v", id, err)
	}
	return !r.now().Before(target), nil
}

// parseTimerID accepts RFC-3339, treating a trailing Z as UTC the same way
// the Python reference normalizes it before calling fromisoformat.
func parseTimerID(id string) (time.Time, error) {
	normalized := strings.Replace(id, "Z", "+00:00", 1)
	t, err := time.Parse(time.RFC3339, normalized)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (r *gateRouter) humanOpen(id string) bool {
	_, ok := r.approvals[id]
	return ok
}

func (r *gateRouter) approveHuman(id string) {
	r.approvals[id] = struct{}{}
}

func (r *gateRouter) revokeHuman(id string) {
	delete(r.approvals, id)
}

func (r *gateRouter) prOpen(ctx context.Context, id string) (bool, error) {
	if entry, ok := r.prCache[id]; ok {
		if r.prTTL <= 0 || r.now().Sub(entry.cached) < r.prTTL {
			return entry.open, nil
		}
	}

	owner, repo, number, err := parsePRID(id)
	if err != nil {
		return false, newErr(ErrBadGateID, "invalid gh:pr gate id %q: %v", id, err)
	}

	if r.prClient == nil {
		// Graceful degradation: no client configured, gate stays closed.
		return false, nil
	}

	open, err := r.prClient.IsPRMerged(ctx, owner, repo, number)
	if err != nil {
		// Backend I/O errors degrade to closed; only structural id errors
		// are surfaced to the caller (spec §7).
		return false, nil
	}

	r.prCache[id] = prCacheEntry{open: open, cached: r.now()}
	return open, nil
}

func parsePRID(id string) (owner, repo string, number int, err error) {
	parts := strings.Split(id, "/")
	if len(parts) != 4 || parts[2] != "pulls" {
		return "", "", 0, fmt.Errorf("expected owner/repo/pulls/N, got %q", id)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return "", "", 0, fmt.Errorf("PR number must be a positive integer, got %q", parts[3])
	}
	return parts[0], parts[1], n, nil
}

// status returns one of the informational strings from spec §4.6. The
// string is never authoritative; isOpen is.
func (r *gateRouter) status(ctx context.Context, kind, id string) string {
	if kind == "" && id == "" {
		return "no gate"
	}

	switch kind {
	case "timer":
		target, err := parseTimerID(id)
		if err != nil {
			return "error"
		}
		now := r.now()
		if !now.Before(target) {
			return "open"
		}
		return fmt.Sprintf("closed (opens in %s)", target.Sub(now).Round(time.Second))
	case "human":
		if r.humanOpen(id) {
			return "open"
		}
		return "pending approval"
	case "gh:pr":
		open, err := r.prOpen(ctx, id)
		if err != nil {
			return "error"
		}
		if open {
			return "open (PR merged)"
		}
		return "closed (PR not merged)"
	default:
		return fmt.Sprintf("error (unknown gate kind: %s)", kind)
	}
}
