package condition

import "github.com/pkg/errors"

var (
	ErrNodeNotFound  = errors.New("condition: node not found")
	ErrNotGroup      = errors.New("condition: target is not a group")
	ErrCycle         = errors.New("condition: cannot move a node under itself or a descendant")
	ErrRootImmutable = errors.New("condition: root group cannot be removed or moved")
)
