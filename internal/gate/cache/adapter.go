package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/slogx"
)

const (
	keyPrefix      = "multifactor"
	profileKey     = "profile"
	membershipKey  = "is2fa"
	groupDNKey     = "dn"
	verdictKey     = "verdict"
	challengeKey   = "challenge"
	unreachableKey = "api-unreachable"
	supportKey     = "support:admin"
)

// TTLs is the single documented TTL set for every cached thing the gate
// tracks. Allow is deliberately shorter than Deny: a fresh grant should be
// re-checked quickly, a fresh denial should discourage immediate retry.
type TTLs struct {
	Directory time.Duration // profile + membership entries
	GroupDN   time.Duration // group identity changes rarely
	Allow     time.Duration // cached successful challenge
	Deny      time.Duration // cached failed challenge
	Challenge time.Duration // in-flight access page URL
	Bypass    time.Duration // api-unreachable flag and support info
}

func DefaultTTLs() TTLs {
	return TTLs{
		Directory: 15 * time.Minute,
		GroupDN:   60 * time.Minute,
		Allow:     45 * time.Second,
		Deny:      60 * time.Second,
		Challenge: 5 * time.Minute,
		Bypass:    15 * time.Minute,
	}
}

// Adapter exposes the typed read/write contracts the decision path uses,
// on top of a plain TTL store. Reads degrade to a miss on store errors and
// writes are best-effort: a broken cache must slow the gate down, never
// break it.
type Adapter struct {
	store Store
	ttl   TTLs
}

func NewAdapter(store Store, ttl TTLs) *Adapter {
	return &Adapter{store: store, ttl: ttl}
}

func (a *Adapter) Profile(ctx context.Context, user string) (domain.Profile, bool) {
	raw, ok := a.get(ctx, key(profileKey, user))
	if !ok {
		return domain.Profile{}, false
	}
	var p domain.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slogx.FromContext(ctx).Warn("cache: dropping undecodable profile entry", "user", user, "err", err)
		_ = a.store.Delete(ctx, key(profileKey, user))
		return domain.Profile{}, false
	}
	return p, true
}

func (a *Adapter) SetProfile(ctx context.Context, user string, p domain.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		slogx.FromContext(ctx).Warn("cache: profile encode failed", "user", user, "err", err)
		return
	}
	a.set(ctx, key(profileKey, user), string(raw), a.ttl.Directory)
}

// Membership returns (isMember, found).
func (a *Adapter) Membership(ctx context.Context, user string) (bool, bool) {
	return a.getBool(ctx, key(membershipKey, user))
}

func (a *Adapter) SetMembership(ctx context.Context, user string, isMember bool) {
	a.setBool(ctx, key(membershipKey, user), isMember, a.ttl.Directory)
}

func (a *Adapter) GroupDN(ctx context.Context, group string) (string, bool) {
	return a.get(ctx, key(groupDNKey, group))
}

func (a *Adapter) SetGroupDN(ctx context.Context, group, dn string) {
	a.set(ctx, key(groupDNKey, group), dn, a.ttl.GroupDN)
}

// Verdict returns the cached challenge outcome for user (+device when the
// product tracks per-device state): (allowed, found).
func (a *Adapter) Verdict(ctx context.Context, user, device string) (bool, bool) {
	return a.getBool(ctx, verdictCacheKey(user, device))
}

func (a *Adapter) SetAllowVerdict(ctx context.Context, user, device string) {
	a.setBool(ctx, verdictCacheKey(user, device), true, a.ttl.Allow)
}

func (a *Adapter) SetDenyVerdict(ctx context.Context, user, device string) {
	a.setBool(ctx, verdictCacheKey(user, device), false, a.ttl.Deny)
}

// PendingChallenge returns the access page URL of a challenge already in
// flight for the user, so a second request rides the existing one instead
// of issuing another.
func (a *Adapter) PendingChallenge(ctx context.Context, user string) (string, bool) {
	return a.get(ctx, key(challengeKey, user))
}

func (a *Adapter) SetPendingChallenge(ctx context.Context, user, url string) {
	a.set(ctx, key(challengeKey, user), url, a.ttl.Challenge)
}

func (a *Adapter) ClearPendingChallenge(ctx context.Context, user string) {
	if err := a.store.Delete(ctx, key(challengeKey, user)); err != nil {
		slogx.FromContext(ctx).Warn("cache: delete failed", "key", key(challengeKey, user), "err", err)
	}
}

func (a *Adapter) APIUnreachable(ctx context.Context, user string) bool {
	v, ok := a.getBool(ctx, key(unreachableKey, user))
	return ok && v
}

func (a *Adapter) SetAPIUnreachable(ctx context.Context, user string) {
	a.setBool(ctx, key(unreachableKey, user), true, a.ttl.Bypass)
}

func (a *Adapter) SupportInfo(ctx context.Context, user string) (domain.SupportInfo, bool) {
	raw, ok := a.get(ctx, key(supportKey, user))
	if !ok {
		return domain.SupportInfo{}, false
	}
	var info domain.SupportInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return domain.SupportInfo{}, false
	}
	return info, !info.IsZero()
}

func (a *Adapter) SetSupportInfo(ctx context.Context, user string, info domain.SupportInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	a.set(ctx, key(supportKey, user), string(raw), a.ttl.Bypass)
}

func (a *Adapter) get(ctx context.Context, k string) (string, bool) {
	val, ok, err := a.store.Get(ctx, k)
	if err != nil {
		slogx.FromContext(ctx).Warn("cache: read failed, treating as miss", "key", k, "err", err)
		return "", false
	}
	return val, ok
}

func (a *Adapter) set(ctx context.Context, k, v string, ttl time.Duration) {
	if err := a.store.Set(ctx, k, v, ttl); err != nil {
		slogx.FromContext(ctx).Warn("cache: write failed", "key", k, "err", err)
	}
}

func (a *Adapter) getBool(ctx context.Context, k string) (bool, bool) {
	switch val, ok := a.get(ctx, k); {
	case !ok:
		return false, false
	case val == "1":
		return true, true
	case val == "0":
		return false, true
	default:
		return false, false
	}
}

func (a *Adapter) setBool(ctx context.Context, k string, v bool, ttl time.Duration) {
	val := "0"
	if v {
		val = "1"
	}
	a.set(ctx, k, val, ttl)
}

func key(kind, name string) string {
	return keyPrefix + ":" + kind + ":" + name
}

func verdictCacheKey(user, device string) string {
	k := key(verdictKey, user)
	if device != "" {
		k += ":" + device
	}
	return k
}
