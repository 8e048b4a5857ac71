package extend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// Patch is a pending update of the entity on the far side of a relation:
// every link of TargetEntity whose paired field is OwnerFieldID gets assigned.
type Patch struct {
	TargetEntity string
	OwnerFieldID types.ConfigID
}

// Resolver keeps both sides of a relation consistent. Builds record patches
// with Resolve; Apply writes them once every entity of a pass is built, so
// the outcome does not depend on the order entities were built in.
type Resolver struct {
	store  types.ConfigStore
	logger *slog.Logger

	pending []Patch
	seen    map[Patch]bool
}

// NewResolver returns a Resolver writing through store. A nil logger
// discards output.
func NewResolver(store types.ConfigStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: orDiscard(logger),
		seen:   make(map[Patch]bool),
	}
}

// Resolve records that ownerFieldID was built and its pair on targetEntity
// must be linked. Duplicate patches are recorded once.
func (r *Resolver) Resolve(targetEntity string, ownerFieldID types.ConfigID) {
	p := Patch{
		TargetEntity: targetEntity,
		OwnerFieldID: types.ConfigID{ClassName: ownerFieldID.ClassName, FieldName: ownerFieldID.FieldName},
	}
	if r.seen[p] {
		return
	}
	r.seen[p] = true
	r.pending = append(r.pending, p)
}

// Pending returns the recorded patches in application order.
func (r *Resolver) Pending() []Patch {
	out := append([]Patch(nil), r.pending...)
	sortPatches(out)
	return out
}

// Apply writes every pending patch ordered by target entity and owner field,
// then flushes once. It returns the number of links that were assigned.
// Patches whose target entity has no configuration are dropped silently.
// The pending list is cleared even when Apply fails; a new pass recomputes it.
func (r *Resolver) Apply(ctx context.Context) (int, error) {
	patches := r.Pending()
	r.pending = nil
	r.seen = make(map[Patch]bool)

	assigned := 0
	// Patches are grouped by target so each target is loaded and persisted once.
	for start := 0; start < len(patches); {
		end := start
		for end < len(patches) && patches[end].TargetEntity == patches[start].TargetEntity {
			end++
		}
		n, err := r.applyTarget(ctx, patches[start].TargetEntity, patches[start:end])
		if err != nil {
			return assigned, err
		}
		assigned += n
		start = end
	}

	if err := r.store.Flush(ctx); err != nil {
		return assigned, fmt.Errorf("flushing relation patches: %w", err)
	}
	return assigned, nil
}

func (r *Resolver) applyTarget(ctx context.Context, targetEntity string, patches []Patch) (int, error) {
	target, err := r.store.GetEntityConfig(ctx, targetEntity)
	if errors.Is(err, types.ErrConfigNotFound) {
		r.logger.Debug("relation target has no config, nothing to link",
			"target", targetEntity)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading relation target %s: %w", targetEntity, err)
	}

	assigned := 0
	for _, p := range patches {
		for i := range target.Relations {
			link := &target.Relations[i]
			if !link.References(p.OwnerFieldID) {
				continue
			}
			link.Assign = true
			assigned++

			if link.FieldID == nil {
				continue
			}
			if err := r.checkPairedField(ctx, *link.FieldID); err != nil {
				return assigned, err
			}
			if link.Owner && target.Schema != nil {
				if target.Schema.Relation == nil {
					target.Schema.Relation = make(map[string]string)
				}
				target.Schema.Relation[GeneratedFieldName(link.FieldID.FieldName)] = link.FieldID.FieldName
			}
		}
	}

	if err := r.store.Persist(ctx, target); err != nil {
		return assigned, fmt.Errorf("persisting relation target %s: %w", targetEntity, err)
	}
	return assigned, nil
}

// checkPairedField logs links whose field has no configuration. The link is
// still assigned; a later field registration completes it.
func (r *Resolver) checkPairedField(ctx context.Context, fieldID types.ConfigID) error {
	ok, err := r.store.HasConfig(ctx, fieldID)
	if err != nil {
		return fmt.Errorf("checking relation field %s: %w", fieldID, err)
	}
	if !ok {
		r.logger.Warn("relation link references a missing field",
			"field", fieldID.String(), "error", types.ErrInconsistentRelation)
	}
	return nil
}

func sortPatches(p []Patch) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].TargetEntity != p[j].TargetEntity {
			return p[i].TargetEntity < p[j].TargetEntity
		}
		if p[i].OwnerFieldID.ClassName != p[j].OwnerFieldID.ClassName {
			return p[i].OwnerFieldID.ClassName < p[j].OwnerFieldID.ClassName
		}
		return p[i].OwnerFieldID.FieldName < p[j].OwnerFieldID.FieldName
	})
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
