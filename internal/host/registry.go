package host

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// State is the host-facing view of an entity.
type State struct {
	EntityID   string         `json:"entity_id"`
	UniqueID   string         `json:"unique_id"`
	Source     string         `json:"source"`
	Name       string         `json:"name"`
	Distance   float64        `json:"distance"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Unit       string         `json:"unit_of_measurement"`
	Icon       string         `json:"icon"`
	Attributes map[string]any `json:"attributes"`
}

// Handle is what the registry gives an entity on attach, letting it request
// work from the host without holding the registry itself. Both methods must
// be called from the loop. A handle only ever acts on the entity it was issued
// to, never on a later entity registered under the same id.
type Handle interface {
	// ScheduleRefresh queues a refresh of the entity on the loop.
	ScheduleRefresh()
	// Remove queues removal of the entity from the registry.
	Remove()
}

// Entity is anything the registry can host.
type Entity interface {
	ID() string
	Attach(h Handle)
	Detach()
	// Refresh re-reads the entity's source and reports whether its state
	// was updated.
	Refresh(ctx context.Context) bool
	State() State
}

// Change describes what happened to an entity's state.
type Change string

const (
	ChangeUpdated Change = "updated"
	ChangeRemoved Change = "removed"
)

// StateChange is emitted to the StateSink after every refresh that updated an
// entity and after every removal.
type StateChange struct {
	Change Change    `json:"change"`
	State  State     `json:"state"`
	At     time.Time `json:"at"`
}

// StateSink receives entity state changes.
type StateSink interface {
	Publish(ctx context.Context, change StateChange) error
}

// Registry owns the set of live entities. All entity bookkeeping runs as loop
// tasks; the exported methods only post work or read through the loop.
type Registry struct {
	loop     *Loop
	entities map[string]*registration
	sink     StateSink
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRegistry creates a registry bound to loop. sink may be nil.
func NewRegistry(loop *Loop, sink StateSink, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		loop:     loop,
		entities: make(map[string]*registration),
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}
}

// registration is one attachment of an entity. removing is set as soon as the
// entity asks to be removed, ahead of the queued removal task.
type registration struct {
	entity   Entity
	removing bool
}

// Add attaches entities to the host. With refreshFirst, each entity gets a
// refresh scheduled right after attaching. Entities whose id is already
// registered are skipped, unless the registered entity is waiting to be
// removed, in which case the new one takes its place.
func (r *Registry) Add(entities []Entity, refreshFirst bool) {
	r.loop.Post(func(_ context.Context) {
		for _, e := range entities {
			id := e.ID()
			if existing, ok := r.entities[id]; ok {
				if !existing.removing {
					r.logger.Warn("entity already registered, skipping", "entity_id", id)
					continue
				}
				existing.entity.Detach()
				r.logger.Debug("replacing entity pending removal", "entity_id", id)
			}
			reg := &registration{entity: e}
			r.entities[id] = reg
			e.Attach(&entityHandle{registry: r, id: id, reg: reg})
			r.logger.Debug("entity added", "entity_id", id)
			if refreshFirst {
				r.postRefresh(id, reg)
			}
		}
		r.metrics.EntitiesLive.Set(float64(len(r.entities)))
	})
}

// ScheduleRefresh queues a refresh of whichever entity holds id when the task
// runs. Unknown ids are ignored.
func (r *Registry) ScheduleRefresh(id string) {
	r.postRefresh(id, nil)
}

// postRefresh refreshes id. A non-nil want restricts the refresh to that
// registration.
func (r *Registry) postRefresh(id string, want *registration) {
	r.loop.Post(func(ctx context.Context) {
		reg, ok := r.entities[id]
		if !ok || (want != nil && reg != want) {
			r.logger.Debug("refresh for unknown entity ignored", "entity_id", id)
			return
		}
		if !reg.entity.Refresh(ctx) {
			return
		}
		r.emit(ctx, ChangeUpdated, reg.entity.State())
	})
}

// Remove queues removal of an entity. Removing an id that is not registered
// (for example one removed a moment earlier) is logged and ignored.
func (r *Registry) Remove(id string) {
	r.postRemove(id, nil)
}

func (r *Registry) postRemove(id string, want *registration) {
	r.loop.Post(func(ctx context.Context) {
		reg, ok := r.entities[id]
		if !ok {
			r.logger.Warn("remove for unknown entity ignored", "entity_id", id)
			r.metrics.EntityRemovalsIgnored.Inc()
			return
		}
		if want != nil && reg != want {
			// The entity was already replaced by a newer one for the same id.
			r.logger.Debug("remove for replaced entity ignored", "entity_id", id)
			return
		}
		reg.entity.Detach()
		delete(r.entities, id)
		r.metrics.EntitiesLive.Set(float64(len(r.entities)))
		r.logger.Debug("entity removed", "entity_id", id)
		r.emit(ctx, ChangeRemoved, reg.entity.State())
	})
}

// States returns the current state of every entity, sorted by entity id.
func (r *Registry) States(ctx context.Context) ([]State, error) {
	var states []State
	err := r.loop.Call(ctx, func(_ context.Context) {
		states = make([]State, 0, len(r.entities))
		for _, reg := range r.entities {
			states = append(states, reg.entity.State())
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })
	return states, nil
}

// State returns the state of one entity.
func (r *Registry) State(ctx context.Context, id string) (State, bool, error) {
	var (
		state State
		found bool
	)
	err := r.loop.Call(ctx, func(_ context.Context) {
		if reg, ok := r.entities[id]; ok {
			state, found = reg.entity.State(), true
		}
	})
	return state, found, err
}

func (r *Registry) emit(ctx context.Context, change Change, state State) {
	if r.sink == nil {
		return
	}
	sc := StateChange{Change: change, State: state, At: domain.Now()}
	if err := r.sink.Publish(ctx, sc); err != nil {
		r.logger.Warn("publish state change failed", "entity_id", state.EntityID, "change", change, "error", err)
		r.metrics.StatePublishErrors.Inc()
	}
}

type entityHandle struct {
	registry *Registry
	id       string
	reg      *registration
}

func (h *entityHandle) ScheduleRefresh() { h.registry.postRefresh(h.id, h.reg) }

func (h *entityHandle) Remove() {
	h.reg.removing = true
	h.registry.postRemove(h.id, h.reg)
}
