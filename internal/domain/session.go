package domain

const (
	DefaultItemCap = 20
	BaselineTheta  = 0.0
)

type Status string

const (
	StatusIdle           Status = "idle"
	StatusStarting       Status = "starting"
	StatusAwaitingAnswer Status = "awaiting_answer"
	StatusSubmitting     Status = "submitting"
	StatusFinished       Status = "finished"
)

func (s Status) Label() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusAwaitingAnswer:
		return "awaiting answer"
	case StatusSubmitting:
		return "submitting"
	case StatusFinished:
		return "finished"
	default:
		return string(s)
	}
}

// Operation names a request to the assessment service.
type Operation string

const (
	OperationNone   Operation = ""
	OperationStart  Operation = "start"
	OperationFetch  Operation = "fetch"
	OperationSubmit Operation = "submit"
)

type FinishReason string

const (
	FinishReasonNone   FinishReason = ""
	FinishReasonServer FinishReason = "server"
	FinishReasonCap    FinishReason = "cap"
)

// Session is the in-progress record of one identity's test.
type Session struct {
	ID             string
	Identity       Identity
	Status         Status
	CurrentItem    *Item
	SelectedOption string
	ItemIndex      int
	ItemCap        int
	Theta          float64
	CorrectCount   int
	FinishReason   FinishReason
}

func NewSession(id string, identity Identity, itemCap int) Session {
	if itemCap <= 0 {
		itemCap = DefaultItemCap
	}

	return Session{
		ID:       id,
		Identity: identity,
		Status:   StatusStarting,
		ItemCap:  itemCap,
		Theta:    BaselineTheta,
	}
}

// ProgressPercent returns answered items as a percentage of the cap, clamped to 100.
func (s Session) ProgressPercent() float64 {
	if s.ItemCap <= 0 {
		return 0
	}

	percent := float64(s.ItemIndex) / float64(s.ItemCap) * 100
	if percent > 100 {
		return 100
	}
	return percent
}

// Snapshot is the read-only view handed to presenters.
type Snapshot struct {
	Session
	Pending Operation
	Err     error
	NoItem  bool
}

func (s Snapshot) Busy() bool {
	return s.Pending != OperationNone
}

func (s Snapshot) Clone() Snapshot {
	copied := s
	if s.CurrentItem != nil {
		copied.CurrentItem = s.CurrentItem.clone()
	}
	return copied
}
