package commandexec

import (
	"strings"

	"github.com/uxplima/uxragent/internal/model"
)

// Ref resolves either by stable id or by array path (spec.md §4.6:
// "Both target and parent refs accept either an id or an array-path").
type Ref struct {
	ID   string
	Path []string
}

func (r Ref) empty() bool { return r.ID == "" && len(r.Path) == 0 }

// CommandKind is the command union from spec.md §4.6.
type CommandKind string

// Command kinds.
const (
	CmdCreate   CommandKind = "create"
	CmdUpdate   CommandKind = "update"
	CmdRename   CommandKind = "rename"
	CmdDelete   CommandKind = "delete"
	CmdReparent CommandKind = "reparent"
)

// Command is one parsed agent-issued mutation request.
type Command struct {
	Op CommandKind

	ParentRef  Ref // create
	ClassName  string
	Name       string
	Properties map[string]model.Value // create (initial) / update

	TargetRef Ref // update / rename / delete / reparent

	NewParentRef Ref // reparent
}

// Parse validates the structural shape of a command and returns a
// validation Conflict if malformed (spec.md §4.6 step 3).
func Parse(c Command) *Conflict {
	switch c.Op {
	case CmdCreate:
		if c.ParentRef.empty() {
			return validationFailed("parentRef", "id or path", "missing")
		}
		if c.ClassName == "" {
			return validationFailed("className", "non-empty string", "missing")
		}
		if c.Name == "" {
			return validationFailed("name", "non-empty string", "missing")
		}
		if strings.Contains(c.Name, ".") {
			return validationFailed("name", "name without dots", c.Name)
		}
	case CmdUpdate:
		if c.TargetRef.empty() {
			return validationFailed("targetRef", "id or path", "missing")
		}
		if len(c.Properties) == 0 {
			return validationFailed("properties", "at least one property", "empty")
		}
	case CmdRename:
		if c.TargetRef.empty() {
			return validationFailed("targetRef", "id or path", "missing")
		}
		if c.Name == "" {
			return validationFailed("name", "non-empty string", "missing")
		}
		if strings.Contains(c.Name, ".") {
			return validationFailed("name", "name without dots", c.Name)
		}
	case CmdDelete:
		if c.TargetRef.empty() {
			return validationFailed("targetRef", "id or path", "missing")
		}
	case CmdReparent:
		if c.TargetRef.empty() {
			return validationFailed("targetRef", "id or path", "missing")
		}
		if c.NewParentRef.empty() {
			return validationFailed("newParentRef", "id or path", "missing")
		}
	default:
		return validationFailed("op", "create|update|rename|delete|reparent", string(c.Op))
	}
	return nil
}
