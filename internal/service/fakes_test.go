package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"sitecms/internal/entity"
	"sitecms/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

var errStore = errors.New("store unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRoles struct {
	byID map[uuid.UUID]entity.Role
}

func newFakeRoles(names ...string) *fakeRoles {
	roles := &fakeRoles{byID: map[uuid.UUID]entity.Role{}}
	for _, name := range names {
		id := uuid.New()
		roles.byID[id] = entity.Role{ID: id, Name: name}
	}
	return roles
}

func (r *fakeRoles) id(name string) uuid.UUID {
	for id, role := range r.byID {
		if role.Name == name {
			return id
		}
	}
	return uuid.Nil
}

func (r *fakeRoles) FindByID(_ context.Context, id uuid.UUID) (*entity.Role, error) {
	role, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func (r *fakeRoles) FindByName(_ context.Context, name string) (*entity.Role, error) {
	id := r.id(name)
	if id == uuid.Nil {
		return nil, nil
	}
	role := r.byID[id]
	return &role, nil
}

func (r *fakeRoles) List(_ context.Context) ([]entity.Role, error) {
	roles := make([]entity.Role, 0, len(r.byID))
	for _, role := range r.byID {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	roles *fakeRoles
	rows  map[uuid.UUID]entity.User

	createErr   error
	// deleteFirst simulates a concurrent delete that lands before Update.
	deleteFirst bool
}

func newFakeUsers(roles *fakeRoles) *fakeUsers {
	return &fakeUsers{roles: roles, rows: map[uuid.UUID]entity.User{}}
}

func (u *fakeUsers) seed(email string, roleID uuid.UUID) entity.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := entity.User{ID: uuid.New(), Email: email, DisplayName: "Seeded", RoleID: roleID}
	u.rows[user.ID] = user
	return user
}

func (u *fakeUsers) withRole(user entity.User) *entity.User {
	if role, ok := u.roles.byID[user.RoleID]; ok {
		user.Role = role
	}
	return &user
}

func (u *fakeUsers) Create(_ context.Context, user *entity.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.createErr != nil {
		return u.createErr
	}
	for _, row := range u.rows {
		if row.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.rows[user.ID] = *user
	return nil
}

func (u *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	row, ok := u.rows[id]
	if !ok {
		return nil, nil
	}
	return u.withRole(row), nil
}

func (u *fakeUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, row := range u.rows {
		if row.Email == email {
			return u.withRole(row), nil
		}
	}
	return nil, nil
}

func (u *fakeUsers) Update(_ context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.deleteFirst {
		delete(u.rows, id)
	}
	row, ok := u.rows[id]
	if !ok {
		return 0, nil
	}
	if email, ok := fields["email"].(string); ok {
		row.Email = email
	}
	if name, ok := fields["display_name"].(string); ok {
		row.DisplayName = name
	}
	if roleID, ok := fields["role_id"].(uuid.UUID); ok {
		row.RoleID = roleID
	}
	u.rows[id] = row
	return 1, nil
}

func (u *fakeUsers) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.rows[id]; !ok {
		return 0, nil
	}
	delete(u.rows, id)
	return 1, nil
}

func (u *fakeUsers) List(_ context.Context, limit, offset int) ([]entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	users := make([]entity.User, 0, len(u.rows))
	for _, row := range u.rows {
		users = append(users, *u.withRole(row))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	if offset >= len(users) {
		return []entity.User{}, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], nil
}

func (u *fakeUsers) Count(_ context.Context) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return int64(len(u.rows)), nil
}

type fakeCodes struct {
	mu   sync.Mutex
	rows []entity.VerificationCode
}

func (c *fakeCodes) Create(_ context.Context, code *entity.VerificationCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	code.ID = uuid.New()
	c.rows = append(c.rows, *code)
	return nil
}

func (c *fakeCodes) CountCreatedSince(_ context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var count int64
	for _, row := range c.rows {
		if row.UserID == userID && row.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (c *fakeCodes) FindUsable(_ context.Context, userID uuid.UUID, now time.Time) ([]entity.VerificationCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var usable []entity.VerificationCode
	for i := len(c.rows) - 1; i >= 0; i-- {
		row := c.rows[i]
		if row.UserID == userID && row.UsedAt == nil && row.ExpiresAt.After(now) {
			usable = append(usable, row)
		}
	}
	return usable, nil
}

func (c *fakeCodes) Consume(_ context.Context, id uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := -1
	for i, row := range c.rows {
		if row.ID == id && row.UserID == userID && row.UsedAt == nil && row.ExpiresAt.After(now) {
			matched = i
		}
	}
	if matched < 0 {
		return false, nil
	}
	for i := range c.rows {
		if c.rows[i].UserID == userID && c.rows[i].UsedAt == nil {
			used := now
			c.rows[i].UsedAt = &used
		}
	}
	return true, nil
}

func (c *fakeCodes) unused(userID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, row := range c.rows {
		if row.UserID == userID && row.UsedAt == nil {
			count++
		}
	}
	return count
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
	err     error
}

func (a *fakeAudit) Append(_ context.Context, entry *entity.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	entry.ID = uuid.New()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeAudit) ListByEntity(_ context.Context, entityName string, entityID string, limit int) ([]entity.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []entity.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := a.entries[i]
		if entry.Entity == entityName && entry.EntityID != nil && *entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (a *fakeAudit) byAction(action entity.AuditAction) []entity.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []entity.AuditEntry
	for _, entry := range a.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

type fakeProvider struct {
	mu         sync.Mutex
	identities map[uuid.UUID]string
	passwords  map[uuid.UUID]string
	tokens     map[string]uuid.UUID

	createErr   error
	deleteErr   error
	passwordErr error
	signInErr   error
	deleted     []uuid.UUID
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		identities: map[uuid.UUID]string{},
		passwords:  map[uuid.UUID]string{},
		tokens:     map[string]uuid.UUID{},
	}
}

func (p *fakeProvider) register(id uuid.UUID, email string, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[id] = email
	p.passwords[id] = password
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.identities)
}

func (p *fakeProvider) has(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.identities[id]
	return ok
}

func (p *fakeProvider) CreateIdentity(_ context.Context, email string, password string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	for _, existing := range p.identities {
		if existing == email {
			return nil, ErrIdentityExists
		}
	}
	id := uuid.New()
	p.identities[id] = email
	p.passwords[id] = password
	return &Identity{ID: id, Email: email}, nil
}

func (p *fakeProvider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, id)
	delete(p.identities, id)
	delete(p.passwords, id)
	return nil
}

func (p *fakeProvider) UpdatePassword(_ context.Context, id uuid.UUID, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.passwordErr != nil {
		return p.passwordErr
	}
	if _, ok := p.identities[id]; !ok {
		return ErrIdentityNotFound
	}
	p.passwords[id] = password
	return nil
}

func (p *fakeProvider) SignIn(_ context.Context, email string, password string) (*ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	for id, existing := range p.identities {
		if existing == email && p.passwords[id] == password {
			token := "token-" + id.String()
			p.tokens[token] = id
			return &ProviderSession{AccessToken: token, ExpiresIn: 3600, Identity: Identity{ID: id, Email: email}}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (p *fakeProvider) VerifyToken(_ context.Context, token string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.tokens[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &Identity{ID: id, Email: p.identities[id]}, nil
}

type fakeSender struct {
	mu    sync.Mutex
	err  error
	sent  map[string][]string
}

func (s *fakeSender) SendVerificationCode(_ context.Context, email string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[string][]string{}
	}
	s.sent[email] = append(s.sent[email], code)
	return nil
}

func (s *fakeSender) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.sent[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

type harness struct {
	clock    *fakeClock
	roles    *fakeRoles
	users    *fakeUsers
	codes    *fakeCodes
	audit    *fakeAudit
	provider *fakeProvider
	sender   *fakeSender
	logs     *test.Hook

	ledger    *AuditLedger
	directory *RoleDirectory
	issuer    *CodeIssuer
	sync      *IdentitySynchronizer
	sessions  *SessionService
	passwords *PasswordService
}

func newHarness() *harness {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		clock:    newFakeClock(),
		roles:    newFakeRoles(entity.RoleSuperAdmin, entity.RoleAdmin, entity.RoleEditor),
		codes:    &fakeCodes{},
		audit:    &fakeAudit{},
		provider: newFakeProvider(),
		sender:   &fakeSender{},
		logs:     hook,
	}
	h.users = newFakeUsers(h.roles)

	h.ledger = NewAuditLedger(h.audit, logger)
	h.directory = NewRoleDirectory(h.roles)
	h.issuer = NewCodeIssuer(h.codes, BcryptCodeHasher{Cost: bcrypt.MinCost}, h.clock, DefaultCodeConfig(), logger)
	h.sync = NewIdentitySynchronizer(h.users, h.directory, h.provider, h.ledger, h.clock, logger, SyncConfig{
		MinPasswordLength: 8,
		ProviderTimeout:   time.Second,
	})
	h.sessions = NewSessionService(h.provider, h.provider, h.users, h.ledger, logger)
	h.passwords = NewPasswordService(h.users, h.issuer, h.provider, h.sender, h.ledger, logger, PasswordConfig{
		MinPasswordLength: 8,
	})
	return h
}

// seedUser creates a user present in both systems.
func (h *harness) seedUser(email string, password string, role string) entity.User {
	user := h.users.seed(email, h.roles.id(role))
	h.provider.register(user.ID, email, password)
	return user
}

func (h *harness) logged(level logrus.Level, message string) bool {
	for _, entry := range h.logs.AllEntries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
