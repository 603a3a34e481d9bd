package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeNotifier) SendActivation(ctx context.Context, email, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email+" "+url)
	return f.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      *AccountService
	accounts *accounts.InMemoryRepository
	sessions *sessions.InMemoryRepository
	tokens   *auth.TokenAuthority
	notifier *fakeNotifier
	clock    *clock
	logs     *bytes.Buffer
}

type fixtureOpt func(*config.Config)

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIURL = "http://api.test/"
	cfg.NotificationsEnabled = true
	for _, o := range opts {
		o(cfg)
	}

	c := &clock{t: time.Now()}
	var logs bytes.Buffer
	f := &fixture{
		accounts: accounts.NewInMemoryRepository(),
		sessions: sessions.NewInMemoryRepository(),
		tokens: auth.NewTokenAuthority(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
			cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration, auth.WithClock(c.now)),
		notifier: &fakeNotifier{},
		clock:    c,
		logs:     &logs,
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	f.svc = NewAccountService(f.accounts, f.sessions, f.tokens, auth.NewPasswordHasher(bcrypt.MinCost),
		f.notifier, cfg, logger, nil)
	return f
}

func (f *fixture) register(t *testing.T, email, pw string) *models.AuthResult {
	t.Helper()
	res, err := f.svc.Registration(context.Background(), email, pw)
	require.NoError(t, err)
	return res
}

// --- registration ---

func TestRegistration_ReturnsPairAndProjection(t *testing.T) {
	f := newFixture(t)

	res := f.register(t, "a@x.com", "pw1")

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotEmpty(t, res.Account.ID)
	assert.Equal(t, "a@x.com", res.Account.Email)
	assert.False(t, res.Account.IsActivated)

	claims, err := f.tokens.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Account, claims)

	s, err := f.sessions.FindByToken(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, s.OwnerID)

	stored, err := f.accounts.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
	assert.NotEmpty(t, stored.ActivationLink)
}

func TestRegistration_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "a@x.com", "pw1")

	_, err := f.svc.Registration(context.Background(), "a@x.com", "other")
	require.ErrorIs(t, err, common.ErrDuplicateAccount)

	all, err := f.accounts.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.Account.ID, all[0].ID)

	// the original password still works
	_, err = f.svc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
}

type racingAccounts struct {
	*accounts.InMemoryRepository
}

func (r racingAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return nil, common.ErrorNotFound
}

func TestRegistration_StoreUniqueViolationIsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw1")

	f.svc.accounts = racingAccounts{f.accounts}
	_, err := f.svc.Registration(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestRegistration_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name, email, pw, field string
	}{
		{"empty email", "", "pw", "email"},
		{"malformed email", "not-an-email", "pw", "email"},
		{"empty password", "a@x.com", "", "password"},
		{"password over 72 bytes", "a@x.com", strings.Repeat("x", auth.MaxPasswordBytes+1), "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Registration(context.Background(), tc.email, tc.pw)
			require.ErrorIs(t, err, common.ErrorValidation)
			assert.Contains(t, err.Error(), tc.field)
		})
	}

	all, _ := f.accounts.ListAll(context.Background())
	assert.Empty(t, all)
}

func TestRegistration_NotificationSent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw1")

	stored, err := f.accounts.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, "a@x.com http://api.test/api/activate/"+stored.ActivationLink, f.notifier.calls[0])
}

func TestRegistration_NotificationsDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.NotificationsEnabled = false })
	f.register(t, "a@x.com", "pw1")

	assert.Empty(t, f.notifier.calls)
}

func TestRegistration_NotifierFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	res := f.register(t, "a@x.com", "pw1")

	assert.NotEmpty(t, res.RefreshToken)
	assert.Contains(t, f.logs.String(), "level=WARN")
	assert.Contains(t, f.logs.String(), "smtp down")
}

// --- login ---

func TestLogin_AfterRegistration(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	res, err := f.svc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	assert.Equal(t, reg.Account.ID, res.Account.ID)
	assert.Equal(t, reg.Account.Email, res.Account.Email)
	assert.NotEqual(t, reg.RefreshToken, res.RefreshToken)

	// login replaced the registration session
	_, err = f.sessions.FindByToken(context.Background(), reg.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw1")

	_, err := f.svc.Login(context.Background(), "a@x.com", "pw2")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "ghost@x.com", "pw1")
	require.ErrorIs(t, err, common.ErrAccountNotFound)
	assert.False(t, errors.Is(err, common.ErrInvalidCredentials))
}

// --- refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw1")
	login, err := f.svc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	res, err := f.svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.Equal(t, login.Account, res.Account)

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_AfterLogout(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	n, err := f.svc.Logout(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Refresh(context.Background(), reg.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefresh_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	for _, tok := range []string{"", "garbage", "a.b.c", reg.AccessToken} {
		_, err := f.svc.Refresh(context.Background(), tok)
		require.ErrorIs(t, err, common.ErrorUnauthorized, "token %q", tok)
	}
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	f.clock.add(f.tokens.RefreshTTL() + time.Minute)

	_, err := f.svc.Refresh(context.Background(), reg.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefresh_SessionOwnerMismatch(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	pair, err := f.tokens.IssuePair(reg.Account)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Upsert(context.Background(), "someone-else", pair.RefreshToken, time.Hour))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefresh_AccountGone(t *testing.T) {
	f := newFixture(t)

	ghost := models.AccountDTO{ID: "ghost", Email: "ghost@x.com"}
	pair, err := f.tokens.IssuePair(ghost)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Upsert(context.Background(), ghost.ID, pair.RefreshToken, time.Hour))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

type brokenSessions struct {
	sessions.Repository
	findErr   error
	upsertErr error
	deleteErr error
}

func (b brokenSessions) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	if b.findErr != nil {
		return nil, b.findErr
	}
	return b.Repository.FindByToken(ctx, token)
}

func (b brokenSessions) Upsert(ctx context.Context, ownerID, token string, validity time.Duration) error {
	if b.upsertErr != nil {
		return b.upsertErr
	}
	return b.Repository.Upsert(ctx, ownerID, token, validity)
}

func (b brokenSessions) DeleteByToken(ctx context.Context, token string) (int64, error) {
	if b.deleteErr != nil {
		return 0, b.deleteErr
	}
	return b.Repository.DeleteByToken(ctx, token)
}

func TestRefresh_SessionStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	f.svc.sessions = brokenSessions{Repository: f.sessions, findErr: errors.New("conn reset")}

	_, err := f.svc.Refresh(context.Background(), reg.RefreshToken)
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "pw1")

	boom := errors.New("conn reset")
	f.svc.sessions = brokenSessions{Repository: f.sessions, upsertErr: boom}

	_, err := f.svc.Login(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", common.Kind(err))
}

// --- logout ---

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	n, err := f.svc.Logout(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.svc.Logout(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.Logout(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogout_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.sessions = brokenSessions{Repository: f.sessions, deleteErr: errors.New("conn reset")}

	_, err := f.svc.Logout(context.Background(), "token")
	require.Error(t, err)
}

// --- listing ---

func TestListAccounts_ScenarioWithoutSecrets(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.com", "pw1")

	_, err := f.svc.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), "a@x.com", "pw2")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	list, err := f.svc.ListAccounts(context.Background())
	require.NoError(t, err)

	want := []models.AccountDTO{{ID: reg.Account.ID, Email: "a@x.com", IsActivated: false}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("ListAccounts mismatch (-want +got):\n%s", diff)
	}
}

func TestListAccounts_InsertionOrder(t *testing.T) {
	f := newFixture(t)
	emails := []string{"c@x.com", "a@x.com", "b@x.com"}
	for _, e := range emails {
		f.register(t, e, "pw")
	}

	list, err := f.svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, e := range emails {
		assert.Equal(t, e, list[i].Email)
	}
}

func TestListAccounts_Empty(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

// --- metrics ---

func TestMetrics_RecordOutcomes(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	f.svc.metrics = m

	f.register(t, "a@x.com", "pw1")
	_, _ = f.svc.Registration(context.Background(), "a@x.com", "pw1")
	_, _ = f.svc.Login(context.Background(), "a@x.com", "bad")

	expected := `
# HELP gophauth_accounts_operations_total Count of account operations by outcome
# TYPE gophauth_accounts_operations_total counter
gophauth_accounts_operations_total{operation="login",outcome="invalid_credentials"} 1
gophauth_accounts_operations_total{operation="registration",outcome="duplicate"} 1
gophauth_accounts_operations_total{operation="registration",outcome="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gophauth_accounts_operations_total"))
}

func TestActivationURL_TrimsSlash(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "http://api.test/api/activate/xyz", f.svc.ActivationURL("xyz"))
}
