package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/shared"
	"github.com/buchwerk/buchwerk/internal/skr03"
)

type memRepo struct {
	accounts  map[string]Account
	entries   map[int64]JournalEntry
	lines     map[int64][]LineItem
	nextID    int64
	nextAcct  int64
	sequences map[EntryType]int64
	classify  *skr03.Map
	seqErr    error
}

func newMemRepo(t *testing.T) *memRepo {
	t.Helper()
	m, err := skr03.NewMap(skr03.Table())
	require.NoError(t, err)
	return &memRepo{
		accounts:  map[string]Account{},
		entries:   map[int64]JournalEntry{},
		lines:     map[int64][]LineItem{},
		sequences: map[EntryType]int64{},
		classify:  m,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) AccountByCode(_ context.Context, companyID int64, code string) (Account, error) {
	a, ok := m.accounts[code]
	if !ok {
		return Account{}, ErrAccountMissing
	}
	return a, nil
}

func (m *memRepo) CreateAccountFromTemplate(_ context.Context, companyID int64, code string) (Account, error) {
	tmpl, ok := m.classify.TemplateFor(code)
	if !ok {
		return Account{}, ErrAccountMissing
	}
	m.nextAcct++
	a := Account{ID: m.nextAcct, CompanyID: companyID, Code: tmpl.Code, Name: tmpl.Name, Type: tmpl.Type}
	m.accounts[code] = a
	return a, nil
}

func (m *memRepo) NextSequence(_ context.Context, _ int64, entryType EntryType) (int64, error) {
	if m.seqErr != nil {
		return 0, m.seqErr
	}
	lo, hi := SequenceRange(entryType)
	next, ok := m.sequences[entryType]
	if !ok {
		next = lo
	}
	if next > hi {
		return 0, ErrSequenceExhausted
	}
	m.sequences[entryType] = next + 1
	return next, nil
}

func (m *memRepo) InsertEntry(_ context.Context, in PostingInput, sequence int64) (JournalEntry, error) {
	m.nextID++
	entry := JournalEntry{
		ID:           m.nextID,
		CompanyID:    in.CompanyID,
		FiscalYearID: in.FiscalYearID,
		BookingDate:  in.BookingDate,
		EntryType:    in.EntryType,
		Sequence:     sequence,
		Memo:         in.Memo,
		SourceRef:    in.SourceRef,
	}
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memRepo) InsertLines(_ context.Context, entryID int64, lines []ResolvedLine) error {
	m.lines[entryID] = toLineItems(entryID, lines)
	return nil
}

func (m *memRepo) MarkEntryPosted(_ context.Context, entryID int64, at time.Time) error {
	entry, ok := m.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	if entry.PostedAt != nil {
		return ErrEntryImmutable
	}
	entry.PostedAt = &at
	m.entries[entryID] = entry
	return nil
}

func (m *memRepo) GetEntryWithLines(_ context.Context, entryID int64) (JournalEntry, error) {
	entry, ok := m.entries[entryID]
	if !ok {
		return JournalEntry{}, ErrEntryNotFound
	}
	entry.Lines = m.lines[entryID]
	return entry, nil
}

func (m *memRepo) PostedAccountBalances(_ context.Context, companyID, fiscalYearID int64) ([]report.AccountBalance, error) {
	byCode := map[string]*report.AccountBalance{}
	for id, entry := range m.entries {
		if entry.CompanyID != companyID || entry.FiscalYearID != fiscalYearID {
			continue
		}
		if entry.PostedAt == nil || entry.EntryType == EntryTypeClosing {
			continue
		}
		for _, line := range m.lines[id] {
			if strings.HasPrefix(line.AccountCode, skr03.SystemAccountPrefix) {
				continue
			}
			b, ok := byCode[line.AccountCode]
			if !ok {
				acc := m.accounts[line.AccountCode]
				b = &report.AccountBalance{Code: acc.Code, Name: acc.Name, Type: acc.Type}
				byCode[line.AccountCode] = b
			}
			if line.Direction == DirectionDebit {
				b.Debit = b.Debit.Add(line.Amount)
			} else {
				b.Credit = b.Credit.Add(line.Amount)
			}
		}
	}
	out := make([]report.AccountBalance, 0, len(byCode))
	for _, b := range byCode {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memRepo) UpdateEntryMemo(_ context.Context, entryID int64, memo string) error {
	entry, ok := m.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	if entry.PostedAt != nil {
		return ErrEntryImmutable
	}
	entry.Memo = memo
	m.entries[entryID] = entry
	return nil
}

type memAudit struct {
	logs []shared.AuditLog
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type openGuard struct{ err error }

func (g openGuard) EnsurePostable(context.Context, int64, time.Time) error { return g.err }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func vatSplitInput() PostingInput {
	return PostingInput{
		CompanyID:    1,
		FiscalYearID: 10,
		BookingDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		EntryType:    EntryTypeNormal,
		Memo:         "Bürobedarf mit Vorsteuer",
		Lines: []PostingLineInput{
			{AccountCode: "4930", Amount: dec("100.00"), Direction: DirectionDebit},
			{AccountCode: "1576", Amount: dec("19.00"), Direction: DirectionDebit},
			{AccountCode: "1200", Amount: dec("119.00"), Direction: DirectionCredit},
		},
	}
}

func TestPostEntryVATSplit(t *testing.T) {
	repo := newMemRepo(t)
	audit := &memAudit{}
	svc := NewService(repo, audit, openGuard{})
	posted := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return posted })

	entry, err := svc.PostEntry(context.Background(), vatSplitInput())
	require.NoError(t, err)

	assert.Equal(t, int64(1000), entry.Sequence)
	require.NotNil(t, entry.PostedAt)
	assert.Equal(t, posted, *entry.PostedAt)
	require.Len(t, entry.Lines, 3)

	var debit, credit decimal.Decimal
	for _, line := range entry.Lines {
		if line.Direction == DirectionDebit {
			debit = debit.Add(line.Amount)
		} else {
			credit = credit.Add(line.Amount)
		}
	}
	assert.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
	assert.True(t, credit.Equal(dec("119.00")))

	// Accounts were provisioned from the classification table.
	assert.Len(t, repo.accounts, 3)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "journal.post", audit.logs[0].Action)
}

func TestPostEntryUnbalancedRejected(t *testing.T) {
	repo := newMemRepo(t)
	svc := NewService(repo, &memAudit{}, openGuard{})

	in := vatSplitInput()
	in.Lines[2].Amount = dec("118.00")
	_, err := svc.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, ErrUnbalanced)
	assert.Empty(t, repo.entries)
}

func TestPostEntrySubCentRejected(t *testing.T) {
	svc := NewService(newMemRepo(t), &memAudit{}, openGuard{})

	in := vatSplitInput()
	in.Lines = []PostingLineInput{
		{AccountCode: "4930", Amount: dec("0.005"), Direction: DirectionDebit},
		{AccountCode: "1200", Amount: dec("0.005"), Direction: DirectionCredit},
	}
	_, err := svc.PostEntry(context.Background(), in)
	require.Error(t, err)
}

func TestPostEntryGuardRefusal(t *testing.T) {
	repo := newMemRepo(t)
	sentinel := errors.New("year closed")
	svc := NewService(repo, &memAudit{}, openGuard{err: sentinel})

	_, err := svc.PostEntry(context.Background(), vatSplitInput())
	require.ErrorIs(t, err, sentinel)
	assert.Empty(t, repo.entries)
}

func TestPostEntryUnknownAccount(t *testing.T) {
	svc := NewService(newMemRepo(t), &memAudit{}, openGuard{})

	in := vatSplitInput()
	// Code outside the SKR03 table and without a system template.
	in.Lines[0].AccountCode = "99999"
	_, err := svc.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, ErrAccountMissing)
}

func TestPostEntrySequenceExhausted(t *testing.T) {
	repo := newMemRepo(t)
	repo.seqErr = ErrSequenceExhausted
	svc := NewService(repo, &memAudit{}, openGuard{})

	_, err := svc.PostEntry(context.Background(), vatSplitInput())
	require.ErrorIs(t, err, ErrSequenceExhausted)
}

func TestUpdateMemoImmutableAfterPosting(t *testing.T) {
	repo := newMemRepo(t)
	svc := NewService(repo, &memAudit{}, openGuard{})

	entry, err := svc.PostEntry(context.Background(), vatSplitInput())
	require.NoError(t, err)

	err = svc.UpdateMemo(context.Background(), entry.ID, "nachträglich geändert")
	require.ErrorIs(t, err, ErrEntryImmutable)

	got, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bürobedarf mit Vorsteuer", got.Memo)
}

func TestSequenceRanges(t *testing.T) {
	lo, hi := SequenceRange(EntryTypeOpening)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(999), hi)

	lo, hi = SequenceRange(EntryTypeNormal)
	assert.Equal(t, int64(1000), lo)
	assert.Equal(t, int64(8999), hi)

	lo, hi = SequenceRange(EntryTypeClosing)
	assert.Equal(t, int64(9000), lo)
	assert.Equal(t, int64(9999), hi)
}
