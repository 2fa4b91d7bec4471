package pool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/gatewayerr"
)

// Capacity is the hard cap on the number of accounts a pool may hold
// (spec §4.1).
const Capacity = 10

const defaultCooldown = 60 * time.Second
const defaultRefreshSkew = 60 * time.Second

// maxRefreshTimeout is the hard ceiling spec §5 places on a single
// token-refresh attempt.
const maxRefreshTimeout = 30 * time.Second

// Refresher exchanges an account's refresh token for a new access
// token, implemented by the upstream OAuth client.
type Refresher interface {
	Refresh(ctx context.Context, account *Account) (accessToken string, expiresAt time.Time, err error)
}

// ProjectDiscoverer performs upstream project discovery for an account
// that has no cached project id.
type ProjectDiscoverer interface {
	DiscoverProject(ctx context.Context, account *Account, token string) (string, error)
}

// Manager is the account pool: selection, refresh, cooldown tracking,
// and persistence.
type Manager struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	refresher      Refresher
	discoverer     ProjectDiscoverer
	refreshSkew    time.Duration
	refreshTimeout time.Duration
	cooldown       time.Duration
	defaultProj    string

	path      string
	persistMu sync.Mutex

	sf  singleflight.Group
	now func() time.Time
}

// Options configures a new Manager.
type Options struct {
	DataPath         string
	DefaultProjectID string
	DefaultCooldown  time.Duration
	RefreshSkew      time.Duration
	// RefreshTimeout bounds a single token-refresh attempt; clamped to
	// maxRefreshTimeout regardless of the configured value (spec §5).
	RefreshTimeout time.Duration
	Refresher      Refresher
	Discoverer     ProjectDiscoverer
}

// NewManager constructs a Manager and loads any persisted state from
// opts.DataPath, if present.
func NewManager(opts Options) (*Manager, error) {
	cooldown := opts.DefaultCooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	skew := opts.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 || refreshTimeout > maxRefreshTimeout {
		refreshTimeout = maxRefreshTimeout
	}

	m := &Manager{
		accounts:       make(map[string]*Account),
		refresher:      opts.Refresher,
		discoverer:     opts.Discoverer,
		refreshSkew:    skew,
		refreshTimeout: refreshTimeout,
		cooldown:       cooldown,
		defaultProj:    opts.DefaultProjectID,
		path:           opts.DataPath,
		now:            time.Now,
	}

	if opts.DataPath != "" {
		if err := m.load(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range state.Accounts {
		m.accounts[a.Email] = a
	}
	return nil
}

// persist snapshots the account list under a read lock, then writes it
// atomically (write to a temp file, rename over the target) serialized
// by persistMu so concurrent mutations never produce a torn write
// (spec §4.1 persistence contract).
func (m *Manager) persist() error {
	if m.path == "" {
		return nil
	}

	m.mu.RLock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })

	data, err := json.MarshalIndent(persistedState{Version: currentSchemaVersion, Accounts: accounts}, "", "  ")
	if err != nil {
		return err
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".pool-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, m.path)
}

// SelectNext round-robins over the eligible set by picking the account
// least recently used, ties broken by email, and marks it used.
// Returns gatewayerr KindNoAccountsAvailable if none qualify.
func (m *Manager) SelectNext() (*Account, error) {
	m.mu.Lock()
	now := m.now()

	eligible := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		if a.eligible(now) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		m.mu.Unlock()
		return nil, gatewayerr.New(gatewayerr.KindNoAccountsAvailable, "no accounts available")
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].LastUsedAt != eligible[j].LastUsedAt {
			return eligible[i].LastUsedAt < eligible[j].LastUsedAt
		}
		return eligible[i].Email < eligible[j].Email
	})

	// Stamp strictly after every existing LastUsedAt so that selections
	// within the same millisecond still rotate instead of re-picking the
	// same account through the email tie-break.
	stamp := now.UnixMilli()
	for _, a := range m.accounts {
		if a.LastUsedAt >= stamp {
			stamp = a.LastUsedAt + 1
		}
	}
	chosen := eligible[0]
	chosen.LastUsedAt = stamp
	result := chosen.Clone()
	m.mu.Unlock()

	_ = m.persist()
	return result, nil
}

// GetToken returns a valid access token for account, refreshing it if
// it is expired or within the refresh skew window. Concurrent callers
// for the same account share a single in-flight refresh.
func (m *Manager) GetToken(ctx context.Context, account *Account) (string, error) {
	m.mu.RLock()
	current := m.accounts[account.Email]
	m.mu.RUnlock()
	if current == nil {
		return "", gatewayerr.New(gatewayerr.KindUnauthorized, "unknown account")
	}

	now := m.now()
	if !current.tokenExpiresSoon(now, m.refreshSkew) {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		if current.AccessTokenExpiresAt != 0 && !time.UnixMilli(current.AccessTokenExpiresAt).After(now) {
			m.mu.Lock()
			m.markInvalidLocked(account.Email, "access token expired with no refresh token")
			m.mu.Unlock()
			_ = m.persist()
		}
		return "", gatewayerr.New(gatewayerr.KindUnauthorized, "no refresh token available")
	}

	tokenAny, err, _ := m.sf.Do(account.Email, func() (any, error) {
		return m.doRefresh(ctx, account.Email)
	})
	if err != nil {
		return "", err
	}
	return tokenAny.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, email string) (string, error) {
	m.mu.RLock()
	current := m.accounts[email]
	m.mu.RUnlock()
	if current == nil {
		return "", gatewayerr.New(gatewayerr.KindUnauthorized, "unknown account")
	}

	// Re-check under the singleflight key: another waiter may have just
	// refreshed while we queued.
	now := m.now()
	if !current.tokenExpiresSoon(now, m.refreshSkew) {
		return current.AccessToken, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	token, expiresAt, err := m.refresher.Refresh(refreshCtx, current.Clone())
	cancel()
	if err != nil {
		m.mu.Lock()
		m.markInvalidLocked(email, "refresh failed")
		m.mu.Unlock()
		_ = m.persist()
		return "", gatewayerr.New(gatewayerr.KindUnauthorized, "refresh failed")
	}

	m.mu.Lock()
	if acc := m.accounts[email]; acc != nil {
		acc.AccessToken = token
		acc.AccessTokenExpiresAt = expiresAt.UnixMilli()
	}
	m.mu.Unlock()
	_ = m.persist()
	return token, nil
}

// GetProject returns account's project id, performing and caching
// upstream discovery if none is stored; falls back to the configured
// default project id if discovery fails and none is set.
func (m *Manager) GetProject(ctx context.Context, account *Account, token string) (string, error) {
	m.mu.RLock()
	current := m.accounts[account.Email]
	m.mu.RUnlock()
	if current == nil {
		return "", gatewayerr.New(gatewayerr.KindUnauthorized, "unknown account")
	}
	if current.ProjectID != "" {
		return current.ProjectID, nil
	}

	if m.discoverer != nil {
		project, err := m.discoverer.DiscoverProject(ctx, current.Clone(), token)
		if err == nil && project != "" {
			m.mu.Lock()
			if acc := m.accounts[account.Email]; acc != nil {
				acc.ProjectID = project
			}
			m.mu.Unlock()
			_ = m.persist()
			return project, nil
		}
	}

	if m.defaultProj != "" {
		return m.defaultProj, nil
	}
	return "", gatewayerr.New(gatewayerr.KindInternal, "no project id available")
}

// MarkRateLimited sets account's cooldown. Idempotent: never reduces
// an existing later reset. A nil resetAt means an indefinite cooldown.
func (m *Manager) MarkRateLimited(email string, resetAt *time.Time) {
	m.mu.Lock()
	acc := m.accounts[email]
	if acc == nil {
		m.mu.Unlock()
		return
	}
	acc.IsRateLimited = true
	if resetAt == nil {
		acc.RateLimitResetAt = nil
	} else {
		ms := resetAt.UnixMilli()
		if acc.RateLimitResetAt == nil || ms > *acc.RateLimitResetAt {
			acc.RateLimitResetAt = &ms
		}
	}
	m.mu.Unlock()
	_ = m.persist()
}

// MarkInvalid sets account's invalid flag and reason; it is skipped by
// SelectNext until Revalidate succeeds.
func (m *Manager) MarkInvalid(email, reason string) {
	m.mu.Lock()
	m.markInvalidLocked(email, reason)
	m.mu.Unlock()
	_ = m.persist()
}

func (m *Manager) markInvalidLocked(email, reason string) {
	if acc := m.accounts[email]; acc != nil {
		acc.IsInvalid = true
		acc.InvalidReason = reason
	}
}

// Revalidate clears the invalid flag and, for accounts with a refresh
// token, forces an immediate token refresh; a refresh failure re-raises
// and leaves the account invalid.
func (m *Manager) Revalidate(ctx context.Context, email string) error {
	m.mu.Lock()
	acc := m.accounts[email]
	if acc == nil {
		m.mu.Unlock()
		return gatewayerr.New(gatewayerr.KindUnauthorized, "unknown account")
	}
	acc.IsInvalid = false
	acc.InvalidReason = ""
	hasRefreshToken := acc.RefreshToken != ""
	if hasRefreshToken {
		// Expire the cached token so doRefresh refreshes even when the
		// current token is still fresh.
		acc.AccessTokenExpiresAt = 0
	}
	m.mu.Unlock()
	_ = m.persist()

	if !hasRefreshToken {
		return nil
	}
	_, err := m.doRefresh(ctx, email)
	return err
}

// ResetAllRateLimits clears the rate-limited flag on every account.
func (m *Manager) ResetAllRateLimits() {
	m.mu.Lock()
	for _, acc := range m.accounts {
		acc.IsRateLimited = false
		acc.RateLimitResetAt = nil
	}
	m.mu.Unlock()
	_ = m.persist()
}

// Delete removes an account by email.
func (m *Manager) Delete(email string) {
	m.mu.Lock()
	delete(m.accounts, email)
	m.mu.Unlock()
	_ = m.persist()
}

// AddOrReplace inserts account, or replaces the existing entry with the
// same email. A brand-new email beyond Capacity fails with
// gatewayerr.KindCapacityExceeded; replacing an existing email is
// always allowed.
func (m *Manager) AddOrReplace(account *Account) error {
	m.mu.Lock()
	_, exists := m.accounts[account.Email]
	if !exists && len(m.accounts) >= Capacity {
		m.mu.Unlock()
		return gatewayerr.New(gatewayerr.KindCapacityExceeded, "account pool is at capacity")
	}
	if account.AddedAt == 0 {
		account.AddedAt = m.now().UnixMilli()
	}
	m.accounts[account.Email] = account
	m.mu.Unlock()
	_ = m.persist()
	return nil
}

// ClearAllTokenCaches forces every account's access token to be
// considered expired, so the next GetToken call refreshes it.
func (m *Manager) ClearAllTokenCaches() {
	m.mu.Lock()
	for _, acc := range m.accounts {
		acc.AccessTokenExpiresAt = 0
	}
	m.mu.Unlock()
	_ = m.persist()
}

// Status is the pool-wide snapshot spec §4.1 requires.
type Status struct {
	Total       int        `json:"total"`
	Available   int        `json:"available"`
	RateLimited int        `json:"rate_limited"`
	Invalid     int        `json:"invalid"`
	Summary     string     `json:"summary"`
	Accounts    []*Account `json:"accounts"`
}

// Snapshot returns the current pool status.
func (m *Manager) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	status := Status{Total: len(m.accounts)}
	accounts := make([]*Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		accounts = append(accounts, acc.Clone())
		switch {
		case acc.IsInvalid:
			status.Invalid++
		case acc.IsRateLimited && (acc.RateLimitResetAt == nil || time.UnixMilli(*acc.RateLimitResetAt).After(now)):
			status.RateLimited++
		default:
			status.Available++
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	status.Accounts = accounts
	status.Summary = summaryLine(status)
	return status
}

func summaryLine(s Status) string {
	return "total=" + strconv.Itoa(s.Total) + " available=" + strconv.Itoa(s.Available) +
		" rate_limited=" + strconv.Itoa(s.RateLimited) + " invalid=" + strconv.Itoa(s.Invalid)
}

// RedactedStatus mirrors Status but carries RedactedAccount entries,
// safe to serve from an unauthenticated endpoint.
type RedactedStatus struct {
	Total       int                `json:"total"`
	Available   int                `json:"available"`
	RateLimited int                `json:"rate_limited"`
	Invalid     int                `json:"invalid"`
	Summary     string             `json:"summary"`
	Accounts    []*RedactedAccount `json:"accounts"`
}

// Redacted strips every account's token fields from s.
func (s Status) Redacted() RedactedStatus {
	accounts := make([]*RedactedAccount, 0, len(s.Accounts))
	for _, acc := range s.Accounts {
		accounts = append(accounts, acc.Redact())
	}
	return RedactedStatus{
		Total:       s.Total,
		Available:   s.Available,
		RateLimited: s.RateLimited,
		Invalid:     s.Invalid,
		Summary:     s.Summary,
		Accounts:    accounts,
	}
}
