package locks

import (
	"fmt"
	"strings"
)

// OrderViolation describes a misuse of the lock protocol. It is never
// returned as an error value; it is the payload of a panic.
type OrderViolation struct {
	Requested string
	Held      []string
	Reason    string
}

func (v *OrderViolation) Error() string {
	held := "none"
	if len(v.Held) > 0 {
		held = strings.Join(v.Held, ", ")
	}
	return fmt.Sprintf("lock order violation: %s %q (held: %s)", v.Reason, v.Requested, held)
}

func (c *Context) violation(requested, reason string) *OrderViolation {
	held := make([]string, 0, len(c.held))
	for _, h := range c.held {
		held = append(held, fmt.Sprintf("%s/%s", h.lock.name, h.mode))
	}
	return &OrderViolation{Requested: requested, Held: held, Reason: reason}
}
