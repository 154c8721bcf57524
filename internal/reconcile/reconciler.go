// Package reconcile keeps a user's JSON config file in sync with a
// distribution template.
//
// Keys missing from the own file are added automatically. Keys the own file
// has but the template lacks are only reported, never removed.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/rs/zerolog"
	"github.com/wI2L/jsondiff"

	"gihan9a/configdist/internal/config"
	xlog "gihan9a/configdist/internal/log"
	"gihan9a/configdist/internal/notify"
	"gihan9a/configdist/pkg/patchset"
)

func logger() zerolog.Logger {
	return xlog.WithComponent("reconcile")
}

// Summary describes the outcome of one reconciliation
type Summary struct {
	Target    config.Target
	Created   bool         // own was absent (or would be, in check mode)
	Additions patchset.Set // keys copied from dist into own
	Removals  patchset.Set // keys only own has, suggested for removal
	Replaced  int          // values that differ; neither applied nor reported
	Written   bool         // own was written to disk
}

// Drift reports whether own was missing or lacked keys from dist
func (s *Summary) Drift() bool {
	return s.Created || len(s.Additions) > 0
}

// Reconciler reconciles targets. The zero value is not usable, use New.
type Reconciler struct {
	notifier notify.Notifier
	indent   string
	check    bool
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithIndent sets the indentation used when rewriting own files
func WithIndent(indent string) Option {
	return func(r *Reconciler) { r.indent = indent }
}

// WithCheck enables check mode: everything is computed and reported but
// nothing is written.
func WithCheck(check bool) Option {
	return func(r *Reconciler) { r.check = check }
}

// New creates a Reconciler reporting to n
func New(n notify.Notifier, opts ...Option) *Reconciler {
	if n == nil {
		n = notify.Discard
	}
	r := &Reconciler{notifier: n, indent: config.DefaultIndent}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile creates target.Own from target.Dist if it is missing, or adds
// the keys it lacks otherwise. Failures are reported before being returned.
func (r *Reconciler) Reconcile(ctx context.Context, target config.Target) (*Summary, error) {
	summary, err := r.reconcile(ctx, target)
	if err != nil {
		r.notifier.Notify(notify.Record{
			Severity: notify.Error,
			Message:  fmt.Sprintf("[%s] %v", target.Name, err),
		})
		return nil, err
	}
	return summary, nil
}

func (r *Reconciler) reconcile(ctx context.Context, target config.Target) (*Summary, error) {
	log := logger().With().Str("target", target.Name).Logger()

	found, err := exists(target.Own)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Debug().Str("own", target.Own).Msg("own config missing, creating from dist")
		return r.create(target)
	}

	dist, own, err := readPair(ctx, target.Dist, target.Own)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dist", target.Dist).Str("own", target.Own).Msg("comparing")
	return r.update(target, dist, own)
}

// create copies the dist file byte for byte once it is known to be valid JSON
func (r *Reconciler) create(target config.Target) (*Summary, error) {
	dist, err := readJSON(target.Dist, KindInvalidTemplate)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Target: target, Created: true}
	if r.check {
		r.notifier.Notify(notify.Record{
			Severity: notify.Warning,
			Message:  fmt.Sprintf("[%s] Configuration file `%s` does not exist.", target.Name, target.Own),
		})
		return summary, nil
	}

	if err := writeFileAtomic(target.Own, dist.raw); err != nil {
		return nil, err
	}
	summary.Written = true

	r.notifier.Notify(notify.Record{
		Severity: notify.Success,
		Message:  fmt.Sprintf("[%s] Configuration file `%s` successfully created. Please configure it to your needs.", target.Name, target.Own),
	})
	return summary, nil
}

// update applies the additions from dist to own and reports the removals
func (r *Reconciler) update(target config.Target, dist, own *document) (*Summary, error) {
	patch, err := jsondiff.CompareJSON(own.raw, dist.raw)
	if err != nil {
		return nil, newError(KindParseFailure, own.path, err)
	}

	ops := patchset.FromPatch(patch)
	summary := &Summary{
		Target:    target,
		Additions: ops.Filter(patchset.OpAdd),
		Removals:  ops.Filter(patchset.OpRemove),
		Replaced:  len(ops.Filter(patchset.OpReplace)),
	}

	if len(summary.Additions) > 0 {
		if err := exactValues(summary.Additions, own.raw, dist.raw); err != nil {
			return nil, newError(KindPatchFailure, own.path, err)
		}

		patched, err := r.applyAdditions(own.raw, summary.Additions)
		if err != nil {
			return nil, newError(KindPatchFailure, own.path, err)
		}

		message := fmt.Sprintf("[%s] File `%s` is not up to date. New keys are added automatically. Please check the following operations:", target.Name, target.Own)
		if r.check {
			message = fmt.Sprintf("[%s] File `%s` is not up to date. The following keys are missing:", target.Name, target.Own)
		} else {
			if err := writeFileAtomic(target.Own, patched); err != nil {
				return nil, err
			}
			summary.Written = true
		}

		r.notifier.Notify(notify.Record{
			Severity: notify.Warning,
			Message:  message,
			Details:  summary.Additions.Render(),
		})
	} else {
		r.notifier.Notify(notify.Record{
			Severity: notify.Info,
			Message:  fmt.Sprintf("[%s] File `%s` is up to date.", target.Name, target.Own),
		})
	}

	if len(summary.Removals) > 0 {
		r.notifier.Notify(notify.Record{
			Severity: notify.Warning,
			Message:  fmt.Sprintf("[%s] File `%s` seems to contain unused values. See the removal suggestions:", target.Name, target.Own),
			Details:  summary.Removals.Render(),
		})
	}

	log := logger().With().Str("target", target.Name).Logger()
	log.Debug().
		Int("additions", len(summary.Additions)).
		Int("removals", len(summary.Removals)).
		Int("replaced", summary.Replaced).
		Bool("written", summary.Written).
		Msg("reconciled")

	return summary, nil
}

// applyAdditions applies the add operations in order, creating missing
// intermediate containers, and returns the indented result.
func (r *Reconciler) applyAdditions(doc []byte, additions patchset.Set) ([]byte, error) {
	raw, err := additions.MarshalPatch()
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	opts := jsonpatch.NewApplyOptions()
	opts.EnsurePathExistsOnAdd = true
	opts.EscapeHTML = false

	patched, err := patch.ApplyWithOptions(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	return indentJSON(patched, r.indent)
}

func indentJSON(doc []byte, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", indent); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
