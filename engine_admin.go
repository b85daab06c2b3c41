package goFaceAuth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
)

// Profile returns a copy of identity's enrolled profile, enabled or not.
func (e *Engine) Profile(ctx context.Context, identity string) (*BiometricProfile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	p, err := e.profiles.GetProfile(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, storeError(err)
	}
	out := p.Clone()
	return &out, nil
}

// DisableProfile turns face authentication off for identity without
// discarding the embedding. Re-enrolling enables it again.
func (e *Engine) DisableProfile(ctx context.Context, identity string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateIdentity(identity); err != nil {
		return err
	}
	err := e.profiles.SetEnabled(ctx, identity, false)
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = ErrProfileNotFound
	case err != nil:
		err = storeError(err)
	}

	if err == nil {
		e.metricInc(MetricProfileDisabled)
	}
	e.emitAudit(ctx, AuditEventProfileDisabled, err == nil, identity, 0, err, nil)
	return err
}

func (e *Engine) AttemptCounters(ctx context.Context, identity string) (AttemptCounters, error) {
	if err := e.ready(); err != nil {
		return AttemptCounters{}, err
	}
	if err := validateIdentity(identity); err != nil {
		return AttemptCounters{}, err
	}
	c, err := e.tracker.Counters(ctx, identity)
	if err != nil {
		return AttemptCounters{}, storeError(err)
	}
	return c, nil
}

// IsLocked reports whether identity is currently locked out.
func (e *Engine) IsLocked(ctx context.Context, identity string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	locked, _, err := e.tracker.IsLocked(ctx, identity)
	if err != nil {
		return false, storeError(err)
	}
	return locked, nil
}

// ResetLockout is the administrative unlock. It clears the failure
// timeline; the monotonic counters are cleared only when resetCounters is
// true.
func (e *Engine) ResetLockout(ctx context.Context, identity string, resetCounters bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateIdentity(identity); err != nil {
		return err
	}
	err := e.tracker.Reset(ctx, identity, resetCounters)
	if err != nil {
		err = storeError(err)
	} else {
		e.metricInc(MetricLockoutReset)
	}
	e.emitAudit(ctx, AuditEventLockoutReset, err == nil, identity, 0, err, func() map[string]string {
		return map[string]string{"counters_reset": strconv.FormatBool(resetCounters)}
	})
	return err
}

// AuditHistory returns up to limit of identity's most recent audit
// records, newest first. It needs the Redis audit log.
func (e *Engine) AuditHistory(ctx context.Context, identity string, limit int) ([]AuditRecord, error) {
	return e.auditSince(ctx, identity, time.Time{}, limit, nil)
}

// FailedAttempts returns identity's failed authentication and step-up
// records newer than since, newest first.
func (e *Engine) FailedAttempts(ctx context.Context, identity string, since time.Time) ([]AuditRecord, error) {
	return e.auditSince(ctx, identity, since, 0, func(r AuditRecord) bool {
		if r.Success {
			return false
		}
		return r.EventType == AuditEventAuthentication || r.EventType == AuditEventMFAVerification
	})
}

func (e *Engine) auditSince(
	ctx context.Context,
	identity string,
	since time.Time,
	limit int,
	keep func(AuditRecord) bool,
) ([]AuditRecord, error) {
	if e == nil || e.auditLog == nil {
		return nil, ErrAuditLogDisabled
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	entries, err := e.auditLog.Recent(ctx, identity, since, int64(limit))
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]AuditRecord, 0, len(entries))
	for _, entry := range entries {
		var r AuditRecord
		if err := json.Unmarshal(entry.Payload, &r); err != nil {
			e.log.Error(err, "skip undecodable audit entry", "identity", identity, "entry", entry.ID)
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
