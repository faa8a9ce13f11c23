package escrow

// Outbox topics published for downstream consumers, one per transition.
const (
	TopicTaskCreated   = "escrow.task_created"
	TopicTaskCompleted = "escrow.task_completed"
	TopicTaskCancelled = "escrow.task_cancelled"
	TopicTaskDisputed  = "escrow.task_disputed"
	TopicTaskResolved  = "escrow.task_resolved"
)

// Event is the business event emitted by a successful transition. It is
// appended to the record's timeline and enqueued on the outbox in the same
// transaction as the transition itself.
type Event interface {
	// Topic is the outbox topic the event is published under.
	Topic() string
	// TimelineType tags the timeline_events row.
	TimelineType() string
}

type TaskCreated struct {
	TaskID string  `json:"task_id"`
	Hirer  Address `json:"hirer"`
	Agent  Address `json:"agent"`
	Amount uint64  `json:"amount"`
}

func (TaskCreated) Topic() string        { return TopicTaskCreated }
func (TaskCreated) TimelineType() string { return "TASK_CREATED" }

type TaskCompleted struct {
	TaskID      string `json:"task_id"`
	AgentPayout uint64 `json:"agent_payout"`
	PlatformFee uint64 `json:"platform_fee"`
}

func (TaskCompleted) Topic() string        { return TopicTaskCompleted }
func (TaskCompleted) TimelineType() string { return "TASK_COMPLETED" }

type TaskCancelled struct {
	TaskID string `json:"task_id"`
	Refund uint64 `json:"refund"`
}

func (TaskCancelled) Topic() string        { return TopicTaskCancelled }
func (TaskCancelled) TimelineType() string { return "TASK_CANCELLED" }

type TaskDisputed struct {
	TaskID     string  `json:"task_id"`
	DisputedBy Address `json:"disputed_by"`
}

func (TaskDisputed) Topic() string        { return TopicTaskDisputed }
func (TaskDisputed) TimelineType() string { return "TASK_DISPUTED" }

type TaskResolved struct {
	TaskID      string `json:"task_id"`
	AgentPayout uint64 `json:"agent_payout"`
	PlatformFee uint64 `json:"platform_fee"`
}

func (TaskResolved) Topic() string        { return TopicTaskResolved }
func (TaskResolved) TimelineType() string { return "TASK_RESOLVED" }
