package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/taskrail/internal/record"
)

// Policies are authored in CUE under a top-level "policy" struct:
//
//	policy: {
//		delete: {
//			roles: ["admin"]
//			creatorWindowMinutes: 15
//		}
//		move: {
//			roles: ["technician", "admin"]
//		}
//	}
//
// Load compiles every .cue file in dir into one Policy. Actions and
// roles are validated against their closed sets; a typo in a policy
// file fails startup instead of silently granting nothing.

// LoadError is a policy compilation failure with enough context to
// point at the offending file.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Load reads and compiles CUE policy files from dir.
func Load(dir string) (*Policy, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Path: dir, Message: "policy directory not found"}
	}
	if err != nil {
		return nil, &LoadError{Path: dir, Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &LoadError{Path: dir, Message: "not a directory"}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &LoadError{Path: dir, Message: err.Error()}
	}
	if len(matches) == 0 {
		return nil, &LoadError{Path: dir, Message: "no CUE policy files found"}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Path: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Path: dir, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	return Compile(value)
}

// Compile extracts the policy table from a built CUE value. Split from
// Load so tests can compile inline CUE without touching the filesystem.
func Compile(value cue.Value) (*Policy, error) {
	policyVal := value.LookupPath(cue.ParsePath("policy"))
	if !policyVal.Exists() {
		return nil, &LoadError{Message: `missing top-level "policy" struct`}
	}

	iter, err := policyVal.Fields()
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("iterating policy actions: %v", err)}
	}

	rules := make(map[Action]Rule)
	for iter.Next() {
		action := Action(iter.Label())
		if !action.Valid() {
			return nil, &LoadError{Message: fmt.Sprintf("unknown action %q (known: %s)", action, actionList())}
		}
		rule, err := compileRule(iter.Value())
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("action %q: %v", action, err)}
		}
		rules[action] = rule
	}
	if len(rules) == 0 {
		return nil, &LoadError{Message: "policy defines no actions"}
	}

	return NewPolicy(rules)
}

func compileRule(v cue.Value) (Rule, error) {
	var rule Rule

	rolesVal := v.LookupPath(cue.ParsePath("roles"))
	if rolesVal.Exists() {
		list, err := rolesVal.List()
		if err != nil {
			return Rule{}, fmt.Errorf("roles must be a list: %w", err)
		}
		for list.Next() {
			name, err := list.Value().String()
			if err != nil {
				return Rule{}, fmt.Errorf("role must be a string: %w", err)
			}
			role := record.Role(name)
			if role != record.RoleTechnician && role != record.RoleAdmin {
				return Rule{}, fmt.Errorf("unknown role %q", name)
			}
			rule.Roles = append(rule.Roles, role)
		}
	}

	windowVal := v.LookupPath(cue.ParsePath("creatorWindowMinutes"))
	if windowVal.Exists() {
		minutes, err := windowVal.Int64()
		if err != nil {
			return Rule{}, fmt.Errorf("creatorWindowMinutes must be an integer: %w", err)
		}
		if minutes < 0 {
			return Rule{}, fmt.Errorf("creatorWindowMinutes must not be negative, got %d", minutes)
		}
		rule.CreatorWindow = time.Duration(minutes) * time.Minute
	}

	if len(rule.Roles) == 0 && rule.CreatorWindow == 0 {
		return Rule{}, fmt.Errorf("rule grants nothing: needs roles or creatorWindowMinutes")
	}
	return rule, nil
}

func actionList() string {
	names := make([]string, 0, len(Actions()))
	for _, a := range Actions() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
