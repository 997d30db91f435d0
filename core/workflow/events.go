package workflow

// EventType names an observable state transition.
type EventType string

const (
	EventPaymentOrderAdded        EventType = "payment_order_added"
	EventPaymentOrdersCollected   EventType = "payment_orders_collected"
	EventPaymentOrderProcessed    EventType = "payment_order_processed"
	EventPaymentOrderDiscarded    EventType = "payment_order_discarded"
	EventStreamingPaymentAdded    EventType = "streaming_payment_added"
	EventStreamingPaymentRemoved  EventType = "streaming_payment_removed"
	EventTokensReleased           EventType = "tokens_released"
	EventUnclaimableAmountAdded   EventType = "unclaimable_amount_added"
	EventBountyAdded              EventType = "bounty_added"
	EventBountyUpdated            EventType = "bounty_updated"
	EventBountyLocked             EventType = "bounty_locked"
	EventClaimAdded               EventType = "claim_added"
	EventClaimUpdated             EventType = "claim_updated"
	EventClaimVerified            EventType = "claim_verified"
	EventMilestoneAdded           EventType = "milestone_added"
	EventMilestoneUpdated         EventType = "milestone_updated"
	EventMilestoneRemoved         EventType = "milestone_removed"
	EventMilestoneStarted         EventType = "milestone_started"
	EventMilestoneSubmitted       EventType = "milestone_submitted"
	EventMilestoneCompleted       EventType = "milestone_completed"
	EventMilestoneDeclined        EventType = "milestone_declined"
	EventMilestoneTimelockUpdated EventType = "milestone_timelock_updated"
	EventFundingDeposited         EventType = "funding_deposited"
	EventFundingWithdrawn         EventType = "funding_withdrawn"
	EventFundingTransferred       EventType = "funding_transferred"
)

// Event is an entry of the workflow audit log.
type Event struct {
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Module    Address        `json:"module"`
	EntityID  uint64         `json:"entity_id,omitempty"`
	Actor     Address        `json:"actor,omitempty"`
	Subject   Address        `json:"subject,omitempty"`
	Amount    uint64         `json:"amount,omitempty"`
	WalletID  uint64         `json:"wallet_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// EventSink receives committed events.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit calls f.
func (f EventSinkFunc) Emit(evt Event) { f(evt) }

// EventRecorder keeps every emitted event in memory.
type EventRecorder struct {
	Events []Event
}

// Emit appends evt.
func (r *EventRecorder) Emit(evt Event) { r.Events = append(r.Events, evt) }

// OfType returns the recorded events of type t.
func (r *EventRecorder) OfType(t EventType) []Event {
	var out []Event
	for _, evt := range r.Events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// journal buffers events of an open transaction so a failed transaction
// leaves no trace in the audit log.
type journal struct {
	sink    EventSink
	seq     uint64
	depth   int
	pending []Event
}

func (j *journal) emit(evt Event) {
	j.seq++
	evt.Seq = j.seq
	if j.depth == 0 {
		j.deliver(evt)
		return
	}
	j.pending = append(j.pending, evt)
}

func (j *journal) deliver(evt Event) {
	if j.sink != nil {
		j.sink.Emit(evt)
	}
}

// scope is one nesting level of the journal.
type scope struct {
	j    *journal
	mark int
}

func (j *journal) begin() scope {
	j.depth++
	return scope{j: j, mark: len(j.pending)}
}

// end commits the scope when err is nil and discards its events otherwise.
// The outermost scope flushes whatever is left to the sink.
func (s scope) end(err error) {
	j := s.j
	if err != nil {
		j.pending = j.pending[:s.mark]
	}
	j.depth--
	if j.depth > 0 {
		return
	}
	pending := j.pending
	j.pending = nil
	for _, evt := range pending {
		j.deliver(evt)
	}
}
