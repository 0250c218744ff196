package studio

import "time"

// =============================================================================
// ENGINE - Wires the components around one Store
// =============================================================================

// Options configures New. Zero values select the defaults.
type Options struct {
	Clock          Clock
	Notifier       CalendarNotifier
	PeriodType     PeriodType
	CancelDeadline time.Duration
	GrantOnAssign  bool
}

// Engine groups the components sharing one store, clock and notifier.
type Engine struct {
	Store     Store
	Clock     Clock
	Ledger    *TicketLedger
	Resolver  *EntitlementResolver
	Locks     *SlotLockManager
	Lifecycle *Controller
	Tickets   *TicketService
	Plans     *PlanService
	Members   *MemberService
}

// New builds an engine over store.
func New(store Store, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	deadline := opts.CancelDeadline
	if deadline <= 0 {
		deadline = DefaultCancelDeadline
	}

	ledger := NewTicketLedger(store, clock)
	resolver := NewEntitlementResolver(store, ledger, opts.PeriodType)
	locks := NewSlotLockManager(store, clock, notifier)

	return &Engine{
		Store:    store,
		Clock:    clock,
		Ledger:   ledger,
		Resolver: resolver,
		Locks:    locks,
		Lifecycle: &Controller{
			Store:          store,
			Resolver:       resolver,
			Locks:          locks,
			Ledger:         ledger,
			Notifier:       notifier,
			Clock:          clock,
			CancelDeadline: deadline,
		},
		Tickets: &TicketService{Ledger: ledger, Members: store},
		Plans:   &PlanService{Store: store, Ledger: ledger, Clock: clock, GrantOnAssign: opts.GrantOnAssign},
		Members: &MemberService{Store: store, Clock: clock},
	}
}
