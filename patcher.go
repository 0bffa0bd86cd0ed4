package ilpatch

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pboyd/ilpatch/cil"
)

// ErrDeclined is returned by a confirm hook to stop a patch before anything
// is written.
var ErrDeclined = errors.New("patch declined")

// Module is an opened module that can be patched. *container.Container
// implements it.
type Module interface {
	Path() string
	MethodBody(typeName, methodName string) (*cil.MethodBody, error)
	Commit() error
}

// Target names the method to patch.
type Target struct {
	Type   string
	Method string
}

// DefaultTarget is the body heat meter's SetValue.
func DefaultTarget() Target {
	return Target{Type: "uGUI_BodyHeatMeter", Method: "SetValue"}
}

func (t Target) String() string { return t.Type + "::" + t.Method }

// Report describes the target method as found.
type Report struct {
	Path           string
	Target         Target
	Instructions   int
	Classification Classification

	// Body is the method body. Patch modifies it.
	Body *cil.MethodBody
}

// Result is the outcome of Patch.
type Result struct {
	Report

	// Patched is set when the module was written.
	Patched bool

	// Backup is the path of the backup, when one was made.
	Backup string
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithClassifier replaces DefaultFingerprint.
func WithClassifier(c Classifier) Option {
	return func(p *Patcher) {
		p.classifier = c
	}
}

// WithPlan replaces CelsiusPlan.
func WithPlan(plan Plan) Option {
	return func(p *Patcher) {
		p.plan = plan
	}
}

// WithBackupSuffix changes the suffix of the backup file.
func WithBackupSuffix(suffix string) Option {
	return func(p *Patcher) {
		p.suffix = suffix
	}
}

// WithConfirm sets a hook called with the report of a patchable method
// before anything changes. An error from the hook stops the patch.
func WithConfirm(confirm func(*Report) error) Option {
	return func(p *Patcher) {
		p.confirm = confirm
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(p *Patcher) {
		p.log = log
	}
}

// Patcher applies a plan to one method of a module.
type Patcher struct {
	target     Target
	classifier Classifier
	plan       Plan
	suffix     string
	confirm    func(*Report) error
	log        *zap.Logger
}

// New returns a Patcher for target.
func New(target Target, opts ...Option) *Patcher {
	p := &Patcher{
		target:     target,
		classifier: DefaultFingerprint(),
		plan:       CelsiusPlan(),
		suffix:     DefaultBackupSuffix,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect locates and classifies the target method without changing
// anything. A missing type or method is an error; a body of unknown shape is
// not.
func (p *Patcher) Inspect(m Module) (*Report, error) {
	body, err := m.MethodBody(p.target.Type, p.target.Method)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Path:           m.Path(),
		Target:         p.target,
		Instructions:   body.Len(),
		Classification: p.classifier.Classify(body),
		Body:           body,
	}
	p.log.Debug("classified method",
		zap.String("path", r.Path),
		zap.String("method", p.target.String()),
		zap.Int("instructions", r.Instructions),
		zap.Stringer("classification", r.Classification),
	)
	return r, nil
}

// Patch splices the plan into a patchable method, backs the module file up
// and writes the module. Bodies that are already patched or unrecognized are
// reported without writing anything.
func (p *Patcher) Patch(m Module) (*Result, error) {
	report, err := p.Inspect(m)
	if err != nil {
		return nil, err
	}
	result := &Result{Report: *report}
	if report.Classification != Patchable {
		return result, nil
	}

	if p.confirm != nil {
		if err := p.confirm(report); err != nil {
			return result, err
		}
	}

	before := Snapshot(report.Body)
	if err := p.plan.Apply(report.Body); err != nil {
		return result, fmt.Errorf("splice %s: %w", p.target, err)
	}
	if err := p.plan.Verify(before, report.Body.Instructions); err != nil {
		return result, fmt.Errorf("splice %s: %w", p.target, err)
	}
	result.Instructions = report.Body.Len()

	tx := NewTransaction(m.Path(), p.suffix, p.log)
	if err := tx.Backup(); err != nil {
		return result, err
	}
	result.Backup = tx.BackupPath()
	if err := tx.Commit(m); err != nil {
		return result, err
	}

	result.Patched = true
	p.log.Info("patched method",
		zap.String("path", result.Path),
		zap.String("method", p.target.String()),
		zap.Int("instructions", result.Instructions),
	)
	return result, nil
}
