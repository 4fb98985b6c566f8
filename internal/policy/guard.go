package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/taskrail/internal/record"
)

// Action is a gated mutation class. Reads (find/where/all) are not
// actions; they are never gated.
type Action string

const (
	ActionCreate       Action = "create"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionMove         Action = "move"
	ActionChangeStatus Action = "changeStatus"
	ActionAssignUser   Action = "assignUser"
)

// Actions lists every known action in stable order.
func Actions() []Action {
	return []Action{
		ActionCreate, ActionEdit, ActionDelete,
		ActionMove, ActionChangeStatus, ActionAssignUser,
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionEdit, ActionDelete, ActionMove, ActionChangeStatus, ActionAssignUser:
		return true
	}
	return false
}

// Rule is the policy for one action. Evaluation order: role grant
// first, then the creator window grant.
type Rule struct {
	// Roles that may always perform the action.
	Roles []record.Role

	// CreatorWindow, when positive, additionally allows the record's
	// own creator for that duration after creation. Zero disables the
	// grant.
	CreatorWindow time.Duration
}

func (r Rule) allowsRole(role record.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Policy is an immutable action→rule table built at startup.
type Policy struct {
	rules map[Action]Rule
}

// NewPolicy builds a policy from an action→rule map. Unknown actions
// are rejected so typos fail at startup, not at evaluation time.
func NewPolicy(rules map[Action]Rule) (*Policy, error) {
	out := make(map[Action]Rule, len(rules))
	for action, rule := range rules {
		if !action.Valid() {
			return nil, fmt.Errorf("policy: unknown action %q", action)
		}
		for _, role := range rule.Roles {
			if role != record.RoleTechnician && role != record.RoleAdmin {
				return nil, fmt.Errorf("policy: action %q: unknown role %q", action, role)
			}
		}
		out[action] = rule
	}
	return &Policy{rules: out}, nil
}

// Rule returns the rule for an action and whether one is defined.
func (p *Policy) Rule(action Action) (Rule, bool) {
	r, ok := p.rules[action]
	return r, ok
}

// Default returns the built-in policy: technicians and admins may
// create, edit, move, and change status; only admins assign users;
// deletion is admin-only except that a record's creator may delete it
// within 15 minutes of creation.
func Default() *Policy {
	both := []record.Role{record.RoleTechnician, record.RoleAdmin}
	adminOnly := []record.Role{record.RoleAdmin}
	p, err := NewPolicy(map[Action]Rule{
		ActionCreate:       {Roles: both},
		ActionEdit:         {Roles: both},
		ActionMove:         {Roles: both},
		ActionChangeStatus: {Roles: both},
		ActionAssignUser:   {Roles: adminOnly},
		ActionDelete:       {Roles: adminOnly, CreatorWindow: 15 * time.Minute},
	})
	if err != nil {
		panic(err) // static table, cannot fail
	}
	return p
}

// Guard evaluates a policy against (action, actor, record) triples.
// Evaluation never mutates guard state, so identical triples always
// produce identical answers.
type Guard struct {
	policy *Policy
	now    func() time.Time
}

// NewGuard creates a guard over policy. now supplies the clock for
// creator-window evaluation; pass time.Now in production.
func NewGuard(policy *Policy, now func() time.Time) *Guard {
	return &Guard{policy: policy, now: now}
}

// Can reports whether the actor may perform action on rec. rec may be
// nil for record-independent actions such as create.
func (g *Guard) Can(action Action, actor record.Actor, rec *record.Record) bool {
	return g.DenialReason(action, actor, rec) == ""
}

// DenialReason returns "" when the action is allowed, otherwise a
// human-readable reason suitable for surfacing verbatim to the caller.
func (g *Guard) DenialReason(action Action, actor record.Actor, rec *record.Record) string {
	if actor.IsZero() {
		return "no authenticated actor"
	}
	if !action.Valid() {
		return fmt.Sprintf("unknown action %q", action)
	}
	rule, ok := g.policy.Rule(action)
	if !ok {
		return fmt.Sprintf("no policy grants %q", action)
	}
	if rule.allowsRole(actor.Role) {
		return ""
	}
	if rule.CreatorWindow > 0 && rec != nil && rec.CreatedByID == actor.ID {
		age := g.now().Sub(rec.CreatedAt)
		if age <= rule.CreatorWindow {
			return ""
		}
		return fmt.Sprintf("%s window for creator elapsed (%s since creation, limit %s)",
			action, age.Round(time.Second), rule.CreatorWindow)
	}
	return fmt.Sprintf("role %s may not %s (allowed: %s)", actor.Role, action, roleList(rule.Roles))
}

// Check returns a typed PermissionError when the action is denied. The
// engine calls this before running any pipeline so a denial has zero
// side effects.
func (g *Guard) Check(action Action, actor record.Actor, rec *record.Record) error {
	if reason := g.DenialReason(action, actor, rec); reason != "" {
		return &record.PermissionError{
			Action:  string(action),
			ActorID: actor.ID,
			Reason:  reason,
		}
	}
	return nil
}

func roleList(roles []record.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
