package bulk

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"lendkeeper/internal/config"
	"lendkeeper/internal/inventory"
)

// Kind distinguishes borrow and return batches.
type Kind string

const (
	KindBorrow Kind = "borrow"
	KindReturn Kind = "return"
)

// Policy decides what happens after an item fails.
type Policy string

const (
	PolicyBestEffort    Policy = config.BulkPolicyBestEffort
	PolicyStopOnFailure Policy = config.BulkPolicyStopOnFailure
)

// Status is the outcome of one item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// KindUnexpected marks items that failed with an error outside the business
// taxonomy, such as an I/O failure.
const KindUnexpected inventory.Kind = "unexpected"

// BorrowItem is one requested borrow.
type BorrowItem struct {
	ResourceID string                `json:"resource_id" yaml:"resource_id"`
	Borrower   inventory.BorrowerRef `json:"borrower" yaml:"borrower"`
	LoanPeriod time.Duration         `json:"loan_period,omitempty" yaml:"loan_period,omitempty"`
	Note       string                `json:"note,omitempty" yaml:"note,omitempty"`
}

// ReturnItem is one requested return.
type ReturnItem struct {
	ResourceID string                `json:"resource_id" yaml:"resource_id"`
	Borrower   inventory.BorrowerRef `json:"borrower,omitempty" yaml:"borrower,omitempty"`
	Condition  inventory.Condition   `json:"condition" yaml:"condition"`
	Note       string                `json:"note,omitempty" yaml:"note,omitempty"`
}

// ItemOutcome records what happened to one item.
type ItemOutcome struct {
	Index      int                   `json:"index"`
	ResourceID string                `json:"resource_id"`
	Borrower   inventory.BorrowerRef `json:"borrower,omitempty"`
	Status     Status                `json:"status"`
	ErrorKind  inventory.Kind        `json:"error_kind,omitempty"`
	Message    string                `json:"message,omitempty"`
	RecordULID string                `json:"record_ulid,omitempty"`
}

// Success reports whether the item committed.
func (o ItemOutcome) Success() bool {
	return o.Status == StatusSucceeded
}

// Result summarizes a batch. Attempted counts every submitted item, so
// Attempted == Succeeded + Failed + Skipped.
type Result struct {
	BatchID     string              `json:"batch_id"`
	Kind        Kind                `json:"kind"`
	Initiator   string              `json:"initiator,omitempty"`
	Policy      Policy              `json:"policy"`
	Attempted   int                 `json:"attempted"`
	Succeeded   int                 `json:"succeeded"`
	Failed      int                 `json:"failed"`
	Skipped     int                 `json:"skipped"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Outcomes    []ItemOutcome       `json:"outcomes,omitempty"`
	Request     jsoniter.RawMessage `json:"request,omitempty"`
}

// Err returns a PartialBulkFailure summary when any item did not succeed.
func (r Result) Err() error {
	if r.Failed == 0 && r.Skipped == 0 {
		return nil
	}
	return &inventory.Error{
		Kind: inventory.KindPartialBulkFailure,
		Message: fmt.Sprintf("batch %s: %d of %d succeeded, %d failed, %d skipped",
			r.BatchID, r.Succeeded, r.Attempted, r.Failed, r.Skipped),
	}
}

func (r *Result) tally() {
	r.Attempted = len(r.Outcomes)
	r.Succeeded, r.Failed, r.Skipped = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}
