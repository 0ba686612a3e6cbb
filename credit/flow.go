package credit

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
	"github.com/0xVanfer/tg-flow/flowutil"
)

// FlowName is the name of the credit flow.
const FlowName = "credit"

// State ids.
const (
	StateMain     = "main"
	StateNotified = "notification_sent"
	StateDebtors  = "debtors"
	StateDebts    = "debtor_debts"
	StateConfirm  = "confirm_save"
	StateSaved    = "saved"
	StateHistory  = "history"
)

// Flow data keys.
const (
	keyCredits   = "credits"
	keyHistory   = "payment_history"
	keySelected  = "selected_debtor"
	keyStaged    = "staged_payments"
	keyAmount    = "custom_amount"
	keyNotice    = "notice"
	keyNotified  = "notification_result"
	keySavedText = "saved_text"
)

// Callback tokens.
const (
	dataMarkPaid  = "mark_paid"
	dataNotifyAll = "notify_all"
	dataHistory   = "history"
	dataPayAll    = "pay_all"
	prefixDebtor  = "debtor:"
	prefixPayCard = "pay_card:"
)

// Service builds the credit flow over a ledger.
type Service struct {
	ledger   Ledger
	notifier Notifier
	parser   *flowutil.MoneyParser
	log      *slog.Logger
}

// NewService creates a service. notifier may be nil, which disables reminders.
func NewService(ledger Ledger, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ledger:   ledger,
		notifier: notifier,
		parser:   flowutil.NewMoneyParser("€"),
		log:      log.With("component", "credit"),
	}
}

// Flow builds the credit flow. Runs start at StateMain.
func (sv *Service) Flow(opts ...flow.Option) (*flow.Flow, error) {
	f := flow.New(FlowName, opts...)

	confirm := flowutil.Confirmation{
		ID:           StateConfirm,
		Question:     "Mark the staged payments as paid?",
		Warning:      "The ledger is updated right away.",
		ConfirmState: StateSaved,
		CancelState:  StateDebts,
	}.State()
	confirm.BackButton = flowutil.CancelData
	confirm.ExitButtons = []string{}

	saved := flowutil.ExitStateFunc(StateSaved, flowutil.FromData(keySavedText, "✅ Payments saved"))
	saved.OnEnter = sv.commit

	states := []flow.Definition{
		{
			ID:           StateMain,
			TextFunc:     sv.mainText,
			KeyboardFunc: sv.mainKeyboard,
			Timeout:      3 * time.Minute,
			NextStates:   map[string]string{dataMarkPaid: StateDebtors, dataHistory: StateHistory},
			ExitButtons:  []string{flowutil.CloseData},
			OnEnter:      sv.refresh,
			OnButton:     sv.mainButton,
		},
		{
			ID:         StateNotified,
			TextFunc:   flowutil.FromData(keyNotified, "✅ Notifications sent"),
			Keyboard:   flowutil.Single("◁ Back to Credits", flowutil.BackData),
			Action:     flow.ActionEdit,
			Timeout:    30 * time.Second,
			BackButton: flowutil.BackData,
		},
		{
			ID:           StateDebtors,
			TextFunc:     sv.debtorsText,
			KeyboardFunc: sv.debtorsKeyboard,
			Action:       flow.ActionEdit,
			Timeout:      2 * time.Minute,
			BackButton:   flowutil.BackData,
			ExitButtons:  []string{},
			OnEnter:      sv.resetStaging,
			OnButton:     sv.selectDebtor,
		},
		{
			ID:           StateDebts,
			TextFunc:     sv.debtsText,
			KeyboardFunc: sv.debtsKeyboard,
			Action:       flow.ActionEdit,
			Timeout:      2 * time.Minute,
			InputPrompt:  "<i>Tap a card to mark it paid or type an amount.</i>",
			StoreAs:      keyAmount,
			Validator:    sv.parser,
			BackButton:   flowutil.BackData,
			ExitButtons:  []string{},
			OnButton:     sv.debtsButton,
			OnInput:      sv.debtsInput,
		},
		confirm,
		saved,
		{
			ID:         StateHistory,
			TextFunc:   sv.historyText,
			Keyboard:   flow.Keyboard{flowutil.Back()},
			Action:     flow.ActionEdit,
			BackButton: flowutil.BackData,
			OnEnter: func(_ context.Context, s *flow.State, _ any, _ int64) error {
				flowutil.Invalidate(s, keyHistory)
				return nil
			},
			Pagination: &flow.PaginationConfig{
				PageSize:        5,
				ShowPageNumbers: true,
				Items:           sv.historyItems,
				FormatItem:      formatPayment,
			},
		},
	}

	for _, d := range states {
		d, err := flowutil.MakeState(d)
		if err != nil {
			return nil, err
		}
		if err := f.Add(d); err != nil {
			return nil, err
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (sv *Service) credits(ctx context.Context, s *flow.State, userID int64) ([]Debt, error) {
	return flowutil.GetOrFetch(ctx, s, keyCredits, func(ctx context.Context) ([]Debt, error) {
		return sv.ledger.Credits(ctx, userID)
	})
}

func (sv *Service) refresh(_ context.Context, s *flow.State, _ any, _ int64) error {
	flowutil.Invalidate(s, keyCredits)
	return nil
}

// Main overview

func (sv *Service) mainText(ctx context.Context, s *flow.State, _ any, userID int64) (string, error) {
	debts, err := sv.credits(ctx, s, userID)
	if err != nil {
		return "", err
	}
	if len(debts) == 0 {
		return core.NewBuilder().Bold("✅ No Outstanding Credits").Ln().Ln().Text("No one owes you money! 🎉").String(), nil
	}

	var groups []flowutil.Group
	index := make(map[string]int)
	subtotals := make(map[string]float64)
	total := 0.0
	for _, d := range debts {
		i, ok := index[d.Card]
		if !ok {
			i = len(groups)
			index[d.Card] = i
			groups = append(groups, flowutil.Group{Name: d.Card})
		}
		groups[i].Entries = append(groups[i].Entries, flowutil.Entry{Label: d.Debtor, Value: euros(d.Outstanding())})
		subtotals[d.Card] += d.Outstanding()
		total += d.Outstanding()
	}
	for i := range groups {
		groups[i].Summary = "Subtotal: " + euros(subtotals[groups[i].Name])
	}

	lb := flowutil.NewListBuilder()
	lb.AlignValues = true
	return lb.BuildGrouped("💰 Your Credit Overview", groups, "Total owed to you: "+euros(total)), nil
}

func (sv *Service) mainKeyboard(ctx context.Context, s *flow.State, _ any, userID int64) (flow.Keyboard, error) {
	debts, err := sv.credits(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	kb := flow.Keyboard{}
	if len(debts) > 0 {
		kb = append(kb, flowutil.Row(
			flow.Button{Text: "💸 Mark as Paid", Data: dataMarkPaid},
			flow.Button{Text: "📢 Notify All", Data: dataNotifyAll},
		))
	}
	kb = append(kb, flowutil.Row(flow.Button{Text: "📜 History", Data: dataHistory}), flowutil.Close())
	return kb, nil
}

func (sv *Service) mainButton(ctx context.Context, data string, s *flow.State, _ any, userID int64) (string, error) {
	if data != dataNotifyAll {
		return "", nil
	}
	result, err := sv.notifyAll(ctx, s, userID)
	if err != nil {
		return "", err
	}
	s.Set(keyNotified, result)
	return StateNotified, nil
}

func (sv *Service) notifyAll(ctx context.Context, s *flow.State, userID int64) (string, error) {
	if sv.notifier == nil {
		return "⚠️ Reminders are not configured", nil
	}
	debts, err := sv.credits(ctx, s, userID)
	if err != nil {
		return "", err
	}
	profile, err := sv.ledger.Profile(ctx, userID)
	if err != nil {
		return "", err
	}

	sent := 0
	for _, d := range debts {
		if d.DebtorID == 0 {
			continue
		}
		if err := sv.notifier.Notify(ctx, d.DebtorID, reminder(profile, d)); err != nil {
			sv.log.Warn("payment reminder failed", "debtor_id", d.DebtorID, "debt_id", d.ID, "error", err)
			continue
		}
		sent++
	}
	return fmt.Sprintf("✅ Sent %d payment reminder(s)", sent), nil
}

func reminder(p Profile, d Debt) string {
	b := core.NewBuilder().
		Bold("💳 Payment Reminder").Ln().Ln().
		Text("You owe ").Bold(euros(d.Outstanding())).Text(" to " + p.Name).Ln().
		Text("from coffee card: ").Bold(d.Card)
	if p.PayPalLink != "" {
		link := fmt.Sprintf("%s/%.2fEUR", strings.TrimRight(p.PayPalLink, "/"), d.Outstanding())
		b.Ln().Ln().Text("💳 Pay now: ").Link(link, link)
	}
	return b.String()
}

// Debtors

type debtorTotal struct {
	name  string
	total float64
}

func (sv *Service) debtorTotals(ctx context.Context, s *flow.State, userID int64) ([]debtorTotal, error) {
	debts, err := sv.credits(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64)
	for _, d := range debts {
		sums[d.Debtor] += d.Outstanding()
	}
	out := make([]debtorTotal, 0, len(sums))
	for name, total := range sums {
		out = append(out, debtorTotal{name: name, total: total})
	}
	slices.SortFunc(out, func(a, b debtorTotal) int { return strings.Compare(a.name, b.name) })
	return out, nil
}

func (sv *Service) debtorsText(ctx context.Context, s *flow.State, _ any, userID int64) (string, error) {
	totals, err := sv.debtorTotals(ctx, s, userID)
	if err != nil {
		return "", err
	}
	entries := make([]flowutil.Entry, 0, len(totals))
	for _, t := range totals {
		entries = append(entries, flowutil.Entry{Label: t.name, Value: euros(t.total)})
	}
	lb := flowutil.NewListBuilder()
	lb.AlignValues = true
	lb.EmptyMessage = "Nobody owes you anything."
	return lb.Build("Select a debtor to mark payments:", entries, ""), nil
}

func (sv *Service) debtorsKeyboard(ctx context.Context, s *flow.State, _ any, userID int64) (flow.Keyboard, error) {
	totals, err := sv.debtorTotals(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	items := make([]flow.Button, 0, len(totals))
	for _, t := range totals {
		items = append(items, flow.Button{
			Text: fmt.Sprintf("%s (%s)", t.name, euros(t.total)),
			Data: prefixDebtor + t.name,
		})
	}
	return flowutil.NewGrid(2).Build(items, nil, flow.Keyboard{flowutil.Back()}), nil
}

func (sv *Service) resetStaging(_ context.Context, s *flow.State, _ any, _ int64) error {
	flowutil.NewStaging[float64](s, keyStaged).Clear()
	return nil
}

func (sv *Service) selectDebtor(_ context.Context, data string, s *flow.State, _ any, _ int64) (string, error) {
	name, ok := strings.CutPrefix(data, prefixDebtor)
	if !ok {
		return "", nil
	}
	s.Set(keySelected, name)
	return StateDebts, nil
}

// Debts of one debtor

func (sv *Service) selectedDebts(ctx context.Context, s *flow.State, userID int64) ([]Debt, error) {
	debts, err := sv.credits(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	name := s.GetString(keySelected)
	var out []Debt
	for _, d := range debts {
		if d.Debtor == name && d.Outstanding() > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func sumStaged(staged map[string]float64) float64 {
	total := 0.0
	for _, v := range staged {
		total += v
	}
	return flowutil.RoundCents(total)
}

func (sv *Service) debtsText(ctx context.Context, s *flow.State, _ any, userID int64) (string, error) {
	debts, err := sv.selectedDebts(ctx, s, userID)
	if err != nil {
		return "", err
	}
	owed := 0.0
	for _, d := range debts {
		owed += d.Outstanding()
	}
	staged := sumStaged(flowutil.NewStaging[float64](s, keyStaged).Staged())

	b := core.NewBuilder()
	if notice, ok := s.Pop(keyNotice); ok {
		b.Line(fmt.Sprint(notice)).Ln()
	}
	b.Bold("Payments from " + s.GetString(keySelected)).Ln().Ln()
	b.Text("Total owed: ").Bold(euros(owed)).Ln()
	if staged > 0 {
		b.Text("Staged payments: ").Bold(euros(staged)).Ln()
		b.Text("Remaining: ").Bold(euros(owed - staged))
	}
	return b.String(), nil
}

func (sv *Service) debtsKeyboard(ctx context.Context, s *flow.State, _ any, userID int64) (flow.Keyboard, error) {
	debts, err := sv.selectedDebts(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	staging := flowutil.NewStaging[float64](s, keyStaged)

	items := make([]flow.Button, 0, len(debts))
	for _, d := range debts {
		staged, _ := staging.Get(d.ID)
		remaining := flowutil.RoundCents(d.Outstanding() - staged)
		label := fmt.Sprintf("%s (%s)", d.Card, euros(d.Outstanding()))
		switch {
		case staged > 0 && remaining <= 0:
			label = d.Card + " ✓"
		case staged > 0:
			label = fmt.Sprintf("%s (%s)", d.Card, euros(remaining))
		}
		items = append(items, flow.Button{Text: label, Data: prefixPayCard + d.ID})
	}

	footer := flow.Keyboard{flowutil.Row(flow.Button{Text: "✅ Mark All as Paid", Data: dataPayAll})}
	if staging.HasChanges() {
		footer = append(footer, flowutil.UndoAndSave())
	} else {
		footer = append(footer, flowutil.Back())
	}
	return flowutil.NewGrid(2).Build(items, nil, footer), nil
}

func (sv *Service) debtsButton(ctx context.Context, data string, s *flow.State, _ any, userID int64) (string, error) {
	debts, err := sv.selectedDebts(ctx, s, userID)
	if err != nil {
		return "", err
	}
	staging := flowutil.NewStaging[float64](s, keyStaged)

	if id, ok := strings.CutPrefix(data, prefixPayCard); ok {
		for _, d := range debts {
			if d.ID == id {
				staging.Stage(id, flowutil.RoundCents(d.Outstanding()))
			}
		}
		return "", nil
	}

	switch data {
	case dataPayAll:
		for _, d := range debts {
			staging.Stage(d.ID, flowutil.RoundCents(d.Outstanding()))
		}
	case flowutil.UndoData:
		staging.Clear()
	case flowutil.SaveData:
		if staging.HasChanges() {
			return StateConfirm, nil
		}
	}
	return "", nil
}

func (sv *Service) debtsInput(ctx context.Context, _ string, s *flow.State, _ any, userID int64) (string, error) {
	amount := s.GetFloat(keyAmount)
	if amount <= 0 {
		s.Set(keyNotice, "❌ Invalid amount. Please enter a positive number.")
		return "", nil
	}

	debts, err := sv.selectedDebts(ctx, s, userID)
	if err != nil {
		return "", err
	}
	staging := flowutil.NewStaging[float64](s, keyStaged)
	staged := staging.Staged()

	items := make(map[string]float64, len(debts))
	created := make(map[string]time.Time, len(debts))
	open := 0.0
	for _, d := range debts {
		items[d.ID] = flowutil.RoundCents(d.Outstanding())
		created[d.ID] = d.CreatedAt
		open += d.Outstanding() - staged[d.ID]
	}
	open = flowutil.RoundCents(open)
	if amount > open {
		s.Set(keyNotice, fmt.Sprintf("❌ Amount cannot exceed what is still open (%s)", euros(open)))
		return "", nil
	}

	distributed := flowutil.Distribute(amount, items, staged, func(a, b string) bool {
		return created[a].Before(created[b])
	})
	for id, covered := range distributed {
		staging.Stage(id, covered)
	}
	s.Set(keyNotice, fmt.Sprintf("✅ Staged %s payment across %d card(s)", euros(amount), len(distributed)))
	return "", nil
}

// commit writes the staged payments to the ledger when the saved state is entered.
func (sv *Service) commit(ctx context.Context, s *flow.State, _ any, userID int64) error {
	staging := flowutil.NewStaging[float64](s, keyStaged)
	total := sumStaged(staging.Staged())

	err := staging.Commit(ctx, func(ctx context.Context, id string, amount float64) error {
		return sv.ledger.ApplyPayment(ctx, userID, id, amount)
	})
	if err != nil {
		return err
	}
	flowutil.Invalidate(s, keyCredits, keyHistory)
	sv.log.Info("payments saved", "user_id", userID, "debtor", s.GetString(keySelected), "amount", total)

	s.Set(keySavedText, core.NewBuilder().
		Bold("✅ Payments saved").Ln().Ln().
		Text("Recorded ").Bold(euros(total)).Text(" from "+s.GetString(keySelected)+".").
		String())
	return nil
}

// History

func (sv *Service) history(ctx context.Context, s *flow.State, userID int64) ([]Payment, error) {
	return flowutil.GetOrFetch(ctx, s, keyHistory, func(ctx context.Context) ([]Payment, error) {
		return sv.ledger.History(ctx, userID)
	})
}

func (sv *Service) historyText(ctx context.Context, s *flow.State, _ any, userID int64) (string, error) {
	payments, err := sv.history(ctx, s, userID)
	if err != nil {
		return "", err
	}
	b := core.NewBuilder().Bold("📜 Payment History")
	if len(payments) == 0 {
		b.Ln().Ln().Text("No payments recorded yet.")
	}
	return b.String(), nil
}

func (sv *Service) historyItems(ctx context.Context, s *flow.State, _ any, userID int64) ([]any, error) {
	payments, err := sv.history(ctx, s, userID)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(payments))
	for i, p := range payments {
		items[i] = p
	}
	return items, nil
}

func formatPayment(item any, _ int) string {
	p, ok := item.(Payment)
	if !ok {
		return ""
	}
	return html.EscapeString(fmt.Sprintf("%s · %s · %s · %s", p.At.Format("02 Jan"), p.Debtor, p.Card, euros(p.Amount)))
}
