package redisbus

import "fmt"

var errTargetCardinality = fmt.Errorf("redisbus: single-target type requires a scalar or one-element list")

func errUnknownTargetType(kind string) error {
	return fmt.Errorf("redisbus: unknown target type %q", kind)
}
