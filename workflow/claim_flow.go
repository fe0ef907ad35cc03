package workflow

import (
	"context"
	"errors"
	"log"
	"sync"

	"ecohunt-be/models"
)

// Step enum for the claiming flow
type Step string

const (
	StepCollaborators Step = "collaborators"
	StepAfterPhoto    Step = "after-photo"
	StepVerification  Step = "verification"
	StepComplete      Step = "complete"
)

var stepOrder = []Step{StepCollaborators, StepAfterPhoto, StepVerification, StepComplete}

var (
	ErrAuthRequired        = errors.New("authentication required to claim an area")
	ErrAreaUnavailable     = errors.New("area is not available for claiming")
	ErrInvalidStep         = errors.New("action not allowed in the current step")
	ErrVerificationPending = errors.New("verification in progress")
	ErrVerificationNeeded  = errors.New("a successful verification is required to continue")
	ErrNotInRoster         = errors.New("user is not an eligible collaborator")
	ErrAlreadySettled      = errors.New("points are already settled for this claim")
	ErrFlowFinished        = errors.New("claiming flow already finished")
	ErrFlowCancelled       = errors.New("claiming flow was cancelled")
)

// Collaborator is one eligible group member the claimer can split points with.
type Collaborator struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	TotalPoints int    `json:"totalPoints"`
}

// ImpactMetrics are the environmental-impact estimates returned by a
// successful verification.
type ImpactMetrics struct {
	WasteRemovedKg       float64 `json:"wasteRemovedKg"`
	CO2SavedKg           float64 `json:"co2SavedKg"`
	RecyclablesRecovered int     `json:"recyclablesRecovered"`
}

// VerificationResult is the outcome of judging an after-photo. Exactly one
// of the two shapes applies: Passed with a score and impact metrics, or not
// Passed with a failure reason and zero points.
type VerificationResult struct {
	Passed        bool          `json:"passed"`
	QualityScore  int           `json:"qualityScore"`
	Completeness  string        `json:"completeness"`
	Feedback      string        `json:"feedback,omitempty"`
	Impact        ImpactMetrics `json:"impact"`
	PointsEarned  int           `json:"pointsEarned"`
	FailureReason string        `json:"failureReason,omitempty"`
}

// VerificationService judges an after-cleanup photo. Implementations must
// return a result for both outcomes; transport errors and timeouts are
// reported as failed results by the HTTP implementation, so an error here
// means the service itself could not be asked.
type VerificationService interface {
	Verify(ctx context.Context, beforePhoto, afterPhoto string) (*VerificationResult, error)
}

// CommitRequest carries everything the persistence boundary needs to record
// a finished claim.
type CommitRequest struct {
	AreaID          string
	ClaimerID       string
	CollaboratorIDs []string
	PhotosAfter     []string
	QualityScore    int
	PointsPerPerson int
	TotalAwarded    int
}

// Committer persists a finished claim: area status to completed plus the
// claim record itself. Must reject the commit when the area already left
// the available status.
type Committer interface {
	CommitClaim(ctx context.Context, req CommitRequest) (claimID string, err error)
}

// Ledger credits points to user profiles. Per-user failures are independent
// and tolerated.
type Ledger interface {
	IncrementPoints(ctx context.Context, userID string, points int) error
}

// Outcome is what a finished flow hands back to the caller.
type Outcome struct {
	ClaimID         string `json:"claimId,omitempty"`
	PerPersonPoints int    `json:"perPersonPoints"`
	TotalAwarded    int    `json:"totalAwarded"`
	QualityScore    int    `json:"qualityScore"`
}

// Config wires a flow to its area, acting user and external collaborators.
// Everything is passed in explicitly so the state machine stays pure and
// testable; there is no ambient global state.
type Config struct {
	AreaID       string
	AreaSeverity models.Severity
	AreaStatus   models.AreaStatus
	BeforePhoto  string
	ActingUserID string
	Roster       []Collaborator

	Verifier  VerificationService
	Committer Committer
	Ledger    Ledger
}

// Flow drives one claiming attempt through its four steps. Transitions are
// strictly linear; the only suspension point is the verification call, and
// nothing is persisted externally until Finish. Safe for concurrent use:
// every HTTP request on a session runs on its own goroutine, so the mutable
// state below is guarded by mu. The lock is dropped around the verification
// call itself, with the verifying flag keeping other requests out.
type Flow struct {
	areaID       string
	severity     models.Severity
	beforePhoto  string
	actingUserID string
	roster       []Collaborator

	verifier  VerificationService
	committer Committer
	ledger    Ledger

	mu         sync.Mutex
	step       Step
	selected   []string
	afterPhoto string
	verifying  bool
	result     *VerificationResult
	settlement *Settlement
	finished   bool
	cancelled  bool
}

// New validates the entry preconditions and returns a flow positioned at
// the collaborator-selection step. The roster is filtered to exclude the
// acting user and de-duplicated.
func New(cfg Config) (*Flow, error) {
	if cfg.ActingUserID == "" {
		return nil, ErrAuthRequired
	}
	if cfg.AreaStatus != models.AreaAvailable {
		return nil, ErrAreaUnavailable
	}
	if cfg.Verifier == nil {
		return nil, errors.New("verification service is required")
	}

	seen := make(map[string]bool, len(cfg.Roster))
	roster := make([]Collaborator, 0, len(cfg.Roster))
	for _, member := range cfg.Roster {
		if member.UserID == cfg.ActingUserID || seen[member.UserID] {
			continue
		}
		seen[member.UserID] = true
		roster = append(roster, member)
	}

	return &Flow{
		areaID:       cfg.AreaID,
		severity:     cfg.AreaSeverity,
		beforePhoto:  cfg.BeforePhoto,
		actingUserID: cfg.ActingUserID,
		roster:       roster,
		verifier:     cfg.Verifier,
		committer:    cfg.Committer,
		ledger:       cfg.Ledger,
		step:         StepCollaborators,
	}, nil
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) AreaID() string { return f.areaID }

func (f *Flow) ActingUserID() string { return f.actingUserID }

// EligibleCollaborators returns the group roster minus the acting user.
func (f *Flow) EligibleCollaborators() []Collaborator {
	out := make([]Collaborator, len(f.roster))
	copy(out, f.roster)
	return out
}

// SelectedCollaborators returns the chosen collaborator IDs in selection order.
func (f *Flow) SelectedCollaborators() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectedLocked()
}

func (f *Flow) selectedLocked() []string {
	out := make([]string, len(f.selected))
	copy(out, f.selected)
	return out
}

// ToggleCollaborator adds or removes a roster member from the collaborator
// set. Only allowed while selecting collaborators and before settlement.
func (f *Flow) ToggleCollaborator(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active(); err != nil {
		return err
	}
	if f.step != StepCollaborators {
		return ErrInvalidStep
	}
	if f.settlement != nil {
		return ErrAlreadySettled
	}
	inRoster := false
	for _, member := range f.roster {
		if member.UserID == userID {
			inRoster = true
			break
		}
	}
	if !inRoster {
		return ErrNotInRoster
	}
	for i, id := range f.selected {
		if id == userID {
			f.selected = append(f.selected[:i], f.selected[i+1:]...)
			return nil
		}
	}
	f.selected = append(f.selected, userID)
	return nil
}

// ProjectedPerPersonPoints previews the even split for the current
// selection without settling anything.
func (f *Flow) ProjectedPerPersonPoints() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.PointsForSeverity(f.severity) / (len(f.selected) + 1)
}

// SubmitPhoto records the after-photo and synchronously asks the
// verification service to judge it. This is the flow's one suspension
// point: forward navigation stays blocked until a result is back, and the
// call itself cannot be cancelled, only the photo discarded afterwards.
func (f *Flow) SubmitPhoto(ctx context.Context, photoRef string) (*VerificationResult, error) {
	f.mu.Lock()
	if err := f.active(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.step != StepAfterPhoto {
		f.mu.Unlock()
		return nil, ErrInvalidStep
	}
	if f.verifying {
		f.mu.Unlock()
		return nil, ErrVerificationPending
	}
	if photoRef == "" {
		f.mu.Unlock()
		return nil, errors.New("photo reference is required")
	}

	f.afterPhoto = photoRef
	f.result = nil
	f.verifying = true
	f.mu.Unlock()

	// The verification call can take many seconds; the lock is not held
	// across it. The verifying flag keeps concurrent requests out.
	result, err := f.verifier.Verify(ctx, f.beforePhoto, photoRef)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifying = false
	if cancelErr := f.active(); cancelErr != nil {
		// Cancelled while the verification was in flight; drop the result.
		f.afterPhoto = ""
		return nil, cancelErr
	}
	if err != nil {
		f.afterPhoto = ""
		return nil, err
	}

	if result.Passed {
		if f.settlement == nil {
			settled := Settle(f.severity, f.selected)
			f.settlement = &settled
		}
		result.PointsEarned = f.settlement.PerPersonPoints
	} else {
		result.PointsEarned = 0
	}
	f.result = result
	return result, nil
}

// DiscardPhoto throws away the current photo and its verification result so
// the user can retake. Not allowed mid-verification.
func (f *Flow) DiscardPhoto() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active(); err != nil {
		return err
	}
	if f.step != StepAfterPhoto {
		return ErrInvalidStep
	}
	if f.verifying {
		return ErrVerificationPending
	}
	f.afterPhoto = ""
	f.result = nil
	return nil
}

// Result returns the latest verification result, nil before the first
// verification finishes.
func (f *Flow) Result() *VerificationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// CanAdvance reports whether Next would currently succeed.
func (f *Flow) CanAdvance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished || f.cancelled || f.verifying {
		return false
	}
	switch f.step {
	case StepCollaborators, StepVerification:
		return true
	case StepAfterPhoto:
		return f.result != nil && f.result.Passed
	default:
		return false
	}
}

// Next advances to the following step. Leaving the after-photo step
// requires the latest verification result to be a success.
func (f *Flow) Next() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active(); err != nil {
		return err
	}
	if f.verifying {
		return ErrVerificationPending
	}
	if f.step == StepAfterPhoto && (f.result == nil || !f.result.Passed) {
		return ErrVerificationNeeded
	}
	for i, s := range stepOrder {
		if s == f.step {
			if i == len(stepOrder)-1 {
				return ErrInvalidStep
			}
			f.step = stepOrder[i+1]
			return nil
		}
	}
	return ErrInvalidStep
}

// Back returns to the previous step. The complete step is terminal and the
// collaborator step has no predecessor.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active(); err != nil {
		return err
	}
	if f.verifying {
		return ErrVerificationPending
	}
	if f.step == StepCollaborators || f.step == StepComplete {
		return ErrInvalidStep
	}
	for i, s := range stepOrder {
		if s == f.step {
			f.step = stepOrder[i-1]
			return nil
		}
	}
	return ErrInvalidStep
}

// Cancel abandons the flow from any non-terminal state. All transient
// progress is discarded; since nothing was persisted before Finish, the
// area and any prior claims are untouched.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.finished {
		return ErrFlowFinished
	}
	f.cancelled = true
	f.afterPhoto = ""
	f.result = nil
	f.settlement = nil
	return nil
}

// Finish commits the claim from the complete step: area status, claim
// record, then best-effort point credits for the claimer and every
// collaborator. A commit rejection because the area already left the
// available status is surfaced; ledger failures are logged and tolerated.
func (f *Flow) Finish(ctx context.Context) (*Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active(); err != nil {
		return nil, err
	}
	if f.step != StepComplete {
		return nil, ErrInvalidStep
	}
	if f.result == nil || !f.result.Passed || f.settlement == nil {
		return nil, ErrVerificationNeeded
	}

	outcome := &Outcome{
		PerPersonPoints: f.settlement.PerPersonPoints,
		TotalAwarded:    f.settlement.TotalAwarded,
		QualityScore:    f.result.QualityScore,
	}

	if f.committer != nil {
		claimID, err := f.committer.CommitClaim(ctx, CommitRequest{
			AreaID:          f.areaID,
			ClaimerID:       f.actingUserID,
			CollaboratorIDs: f.selectedLocked(),
			PhotosAfter:     []string{f.afterPhoto},
			QualityScore:    f.result.QualityScore,
			PointsPerPerson: f.settlement.PerPersonPoints,
			TotalAwarded:    f.settlement.TotalAwarded,
		})
		if err != nil {
			if errors.Is(err, models.ErrAreaNotAvailable) {
				return nil, err
			}
			// Fire-and-forget: the user already saw a verified cleanup,
			// so a persistence hiccup is logged rather than unwound.
			log.Printf("claim commit failed for area %s: %v", f.areaID, err)
		}
		outcome.ClaimID = claimID
	}

	if f.ledger != nil {
		credit := func(userID string) {
			if err := f.ledger.IncrementPoints(ctx, userID, f.settlement.PerPersonPoints); err != nil {
				log.Printf("failed to credit %d points to user %s: %v", f.settlement.PerPersonPoints, userID, err)
			}
		}
		credit(f.actingUserID)
		for _, collaboratorID := range f.selected {
			credit(collaboratorID)
		}
	}

	f.finished = true
	return outcome, nil
}

// active reports whether the flow can still be driven. Callers hold mu.
func (f *Flow) active() error {
	if f.finished {
		return ErrFlowFinished
	}
	if f.cancelled {
		return ErrFlowCancelled
	}
	return nil
}

// Finished reports whether the flow reached its terminal commit.
func (f *Flow) Finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}
