package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/spendwise/internal/calculator"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/storage"
)

// maxLedgerAttempts bounds how often a settlement is retried after losing
// a version race.
const maxLedgerAttempts = 5

// LedgerObserver is notified of ledger outcomes. *metrics.Metrics satisfies it.
type LedgerObserver interface {
	LedgerAppended()
	LedgerConflict()
	ShareSettled()
}

type nopObserver struct{}

func (nopObserver) LedgerAppended() {}
func (nopObserver) LedgerConflict() {}
func (nopObserver) ShareSettled()   {}

// GroupService manages groups and their shared ledgers.
type GroupService struct {
	store    storage.Store
	logger   *slog.Logger
	observer LedgerObserver
	now      func() time.Time
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	return &GroupService{
		store:    store,
		logger:   logger,
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver reports ledger outcomes to o.
func (s *GroupService) WithObserver(o LedgerObserver) *GroupService {
	s.observer = o
	return s
}

// CreateGroupInput is the request to create a group.
type CreateGroupInput struct {
	Title       string
	Description string
	// Members holds emails (anything containing '@') or user IDs.
	Members []string
}

// AddTransactionInput is the request to append a transaction to a ledger.
type AddTransactionInput struct {
	Description string
	Amount      money.Amount
	SplitType   models.SplitType
	// Shares maps member user IDs to amounts (unequally) or percentages
	// (percentage). Ignored for equally.
	Shares map[string]decimal.Decimal
	// Date defaults to now when zero.
	Date time.Time
}

// MemberRef identifies a user with their display details.
type MemberRef struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// MemberView is a group member as presented to clients.
type MemberView struct {
	MemberRef
	Role models.Role `json:"role"`
}

// SplitDetailView is one member's share with the member resolved.
type SplitDetailView struct {
	Member MemberRef    `json:"member"`
	Share  money.Amount `json:"share"`
	Paid   bool         `json:"paid"`
}

// TransactionView is a ledger entry with every user reference resolved.
type TransactionView struct {
	ID           string                   `json:"id"`
	Description  string                   `json:"description"`
	Amount       money.Amount             `json:"amount"`
	Date         time.Time                `json:"date"`
	SplitType    models.SplitType         `json:"splitType"`
	InitiatedBy  MemberRef                `json:"initiatedBy"`
	Status       models.TransactionStatus `json:"status"`
	SplitDetails []SplitDetailView        `json:"splitDetails"`
}

// GroupView is the reconstructed state of a group.
type GroupView struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Members      []MemberView      `json:"members"`
	Transactions []TransactionView `json:"transactions"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// GroupSummary is a group as shown in a list.
type GroupSummary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	MemberCount      int       `json:"memberCount"`
	TransactionCount int       `json:"transactionCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// BalanceView is a member's outstanding position in a group.
type BalanceView struct {
	MemberRef
	Owed money.Amount `json:"owed"`
	Owes money.Amount `json:"owes"`
	Net  money.Amount `json:"net"`
}

// DebtView is one payment that would settle part of the group's balances.
type DebtView struct {
	From   MemberRef    `json:"from"`
	To     MemberRef    `json:"to"`
	Amount money.Amount `json:"amount"`
}

// GroupBalances is the outstanding state of a group's ledger.
type GroupBalances struct {
	GroupID  string        `json:"groupId"`
	Balances []BalanceView `json:"balances"`
	Debts    []DebtView    `json:"debts"`
}

// CreateGroup resolves the member identifiers and persists a new group with
// the creator as admin.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID string, in CreateGroupInput) (*GroupView, error) {
	s.logger.Info("CreateGroup request received",
		"title", in.Title,
		"members_count", len(in.Members),
	)

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	identifiers := normalizeIdentifiers(in.Members)
	if title == "" || description == "" || len(identifiers) == 0 {
		return nil, invalid("Title, description and members are required.")
	}

	creator, err := s.store.GetUserByID(ctx, creatorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}

	users, err := s.resolveMembers(ctx, identifiers)
	if err != nil {
		var unknown *UnknownMembersError
		if !errors.As(err, &unknown) {
			s.logger.Error("CreateGroup failed", "error", err)
		}
		return nil, err
	}

	members := make([]models.Member, 0, len(users)+1)
	seen := make(map[string]bool, len(users)+1)
	if !containsUser(users, creator.ID) {
		members = append(members, memberOf(creator, models.RoleAdmin))
		seen[creator.ID] = true
	}
	for _, u := range users {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		role := models.RoleMember
		if u.ID == creator.ID {
			role = models.RoleAdmin
		}
		members = append(members, memberOf(u, role))
	}

	now := s.now()
	group := &models.Group{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Members:     members,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.logger.Info("Group created", "group_id", group.ID, "members_count", len(members))
	return newGroupView(group), nil
}

// resolveMembers looks identifiers up in two batches, one by email and one
// by ID, and reports every miss at once.
func (s *GroupService) resolveMembers(ctx context.Context, identifiers []string) ([]*models.User, error) {
	var emails, ids []string
	for _, ident := range identifiers {
		if isEmail(ident) {
			emails = append(emails, ident)
		} else {
			ids = append(ids, ident)
		}
	}

	byEmail := map[string]*models.User{}
	byID := map[string]*models.User{}
	var err error
	if len(emails) > 0 {
		if byEmail, err = s.store.GetUsersByEmails(ctx, emails); err != nil {
			return nil, fmt.Errorf("failed to look up members by email: %w", err)
		}
	}
	if len(ids) > 0 {
		if byID, err = s.store.GetUsersByIDs(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to look up members by id: %w", err)
		}
	}

	users := make([]*models.User, 0, len(identifiers))
	var missing []string
	for _, ident := range identifiers {
		var u *models.User
		if isEmail(ident) {
			u = byEmail[ident]
		} else {
			u = byID[ident]
		}
		if u == nil {
			missing = append(missing, ident)
			continue
		}
		users = append(users, u)
	}
	if len(missing) > 0 {
		return nil, &UnknownMembersError{Missing: missing}
	}
	return users, nil
}

// AddTransaction computes the split for a new expense and appends it to the
// group's ledger. Membership is fixed at creation, so the split never goes
// stale and the append needs no version check.
func (s *GroupService) AddTransaction(ctx context.Context, groupID, initiatorID string, in AddTransactionInput) (*TransactionView, error) {
	s.logger.Info("AddTransaction request received",
		"group_id", groupID,
		"initiator", initiatorID,
		"split_type", in.SplitType,
		"amount", in.Amount,
	)

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, invalid("Description is required.")
	}
	if !in.Amount.Positive() {
		return nil, invalid("Amount must be a positive number.")
	}
	strategy, err := calculator.NewStrategy(in.SplitType, in.Shares)
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(initiatorID) {
		return nil, ErrInitiatorNotMember
	}

	details, err := strategy.Split(in.Amount, group.MemberIDs(), initiatorID)
	if err != nil {
		return nil, err
	}

	tx := models.GroupTransaction{
		ID:           uuid.NewString(),
		Description:  description,
		Amount:       in.Amount,
		Date:         date,
		SplitType:    strategy.Type(),
		InitiatedBy:  initiatorID,
		Status:       models.StatusPending,
		SplitDetails: details,
	}

	version, err := s.store.AppendTransaction(ctx, groupID, &tx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		s.logger.Error("AddTransaction failed", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	s.observer.LedgerAppended()
	s.logger.Info("Transaction added",
		"group_id", groupID,
		"transaction_id", tx.ID,
		"splits", len(tx.SplitDetails),
		"version", version,
	)
	view := newTransactionView(group, &tx)
	return &view, nil
}

// GetGroup returns the reconstructed group. Only members may read it.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID string) (*GroupView, error) {
	s.logger.Info("GetGroup request received", "group_id", groupID)

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) {
		return nil, ErrNotGroupMember
	}

	s.logger.Info("GetGroup successful", "group_id", group.ID, "transactions", len(group.Transactions))
	return newGroupView(group), nil
}

// ListGroups returns summaries of the groups the user belongs to.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]GroupSummary, error) {
	s.logger.Info("ListGroups request received", "user_id", userID)

	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		s.logger.Error("ListGroups failed", "error", err)
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	summaries := make([]GroupSummary, len(groups))
	for i, g := range groups {
		summaries[i] = GroupSummary{
			ID:               g.ID,
			Title:            g.Title,
			Description:      g.Description,
			MemberCount:      len(g.Members),
			TransactionCount: len(g.Transactions),
			CreatedAt:        g.CreatedAt,
		}
	}

	s.logger.Info("ListGroups successful", "count", len(summaries))
	return summaries, nil
}

// GetGroupBalances calculates what every member owes and is owed across the
// group's unpaid shares.
func (s *GroupService) GetGroupBalances(ctx context.Context, groupID, userID string) (*GroupBalances, error) {
	s.logger.Info("GetGroupBalances request received", "group_id", groupID)

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) {
		return nil, ErrNotGroupMember
	}

	balances, debts := calculator.CalculateGroupBalances(group.MemberIDs(), group.Transactions)

	out := &GroupBalances{
		GroupID:  group.ID,
		Balances: make([]BalanceView, len(balances)),
		Debts:    make([]DebtView, len(debts)),
	}
	for i, b := range balances {
		out.Balances[i] = BalanceView{
			MemberRef: refOf(group, b.UserID),
			Owed:      b.Owed,
			Owes:      b.Owes,
			Net:       b.Net,
		}
	}
	for i, d := range debts {
		out.Debts[i] = DebtView{
			From:   refOf(group, d.From),
			To:     refOf(group, d.To),
			Amount: d.Amount,
		}
	}

	s.logger.Info("GetGroupBalances successful", "group_id", groupID, "debts", len(debts))
	return out, nil
}

// SettleShare marks memberID's share of a transaction as paid. The
// transaction completes once every share is paid.
func (s *GroupService) SettleShare(ctx context.Context, groupID, txID, memberID string) (*TransactionView, error) {
	s.logger.Info("SettleShare request received",
		"group_id", groupID,
		"transaction_id", txID,
		"member", memberID,
	)

	for attempt := 1; attempt <= maxLedgerAttempts; attempt++ {
		group, err := s.loadGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if !group.IsMember(memberID) {
			return nil, ErrNotGroupMember
		}
		tx, ok := group.Transaction(txID)
		if !ok {
			return nil, ErrTransactionNotFound
		}
		idx := -1
		for i, d := range tx.SplitDetails {
			if d.Member == memberID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotParticipant
		}
		if tx.SplitDetails[idx].Paid {
			return nil, ErrAlreadySettled
		}

		tx.SplitDetails[idx].Paid = true
		tx.Status = models.StatusPending
		if tx.AllPaid() {
			tx.Status = models.StatusCompleted
		}

		_, err = s.store.MarkSharePaid(ctx, groupID, group.Version, txID, memberID, tx.Status)
		if errors.Is(err, storage.ErrConflict) {
			s.observer.LedgerConflict()
			s.logger.Warn("SettleShare version conflict, retrying",
				"group_id", groupID,
				"version", group.Version,
				"attempt", attempt,
			)
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			s.logger.Error("SettleShare failed", "group_id", groupID, "error", err)
			return nil, fmt.Errorf("failed to settle share: %w", err)
		}

		s.observer.ShareSettled()
		s.logger.Info("Share settled", "group_id", groupID, "transaction_id", txID, "status", tx.Status)
		view := newTransactionView(group, tx)
		return &view, nil
	}

	s.logger.Error("SettleShare failed", "group_id", groupID, "error", "retries exhausted")
	return nil, fmt.Errorf("group %s changed %d times while settling: %w",
		groupID, maxLedgerAttempts, storage.ErrConflict)
}

func (s *GroupService) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load group", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return group, nil
}

// normalizeIdentifiers trims, lowercases emails and drops blanks and
// duplicates, keeping first occurrence order.
func normalizeIdentifiers(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, ident := range raw {
		ident = strings.TrimSpace(ident)
		if isEmail(ident) {
			ident = strings.ToLower(ident)
		}
		if ident == "" || seen[ident] {
			continue
		}
		seen[ident] = true
		out = append(out, ident)
	}
	return out
}

func isEmail(ident string) bool {
	return strings.Contains(ident, "@")
}

func containsUser(users []*models.User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func memberOf(u *models.User, role models.Role) models.Member {
	return models.Member{UserID: u.ID, Name: u.Name, Email: u.Email, Role: role}
}

func refOf(g *models.Group, userID string) MemberRef {
	m, _ := g.Member(userID)
	return MemberRef{UserID: userID, Name: m.Name, Email: m.Email}
}

func newTransactionView(g *models.Group, tx *models.GroupTransaction) TransactionView {
	details := make([]SplitDetailView, len(tx.SplitDetails))
	for i, d := range tx.SplitDetails {
		details[i] = SplitDetailView{Member: refOf(g, d.Member), Share: d.Share, Paid: d.Paid}
	}
	return TransactionView{
		ID:           tx.ID,
		Description:  tx.Description,
		Amount:       tx.Amount,
		Date:         tx.Date,
		SplitType:    tx.SplitType,
		InitiatedBy:  refOf(g, tx.InitiatedBy),
		Status:       tx.Status,
		SplitDetails: details,
	}
}

func newGroupView(g *models.Group) *GroupView {
	members := make([]MemberView, len(g.Members))
	for i, m := range g.Members {
		members[i] = MemberView{
			MemberRef: MemberRef{UserID: m.UserID, Name: m.Name, Email: m.Email},
			Role:      m.Role,
		}
	}
	txns := make([]TransactionView, len(g.Transactions))
	for i := range g.Transactions {
		txns[i] = newTransactionView(g, &g.Transactions[i])
	}
	return &GroupView{
		ID:           g.ID,
		Title:        g.Title,
		Description:  g.Description,
		Members:      members,
		Transactions: txns,
		Version:      g.Version,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}
