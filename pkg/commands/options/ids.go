package options

import (
	"errors"
	"fmt"
	"strconv"
)

// ParseIDs reads todo ids from positional args.
func ParseIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("requires a todo id")
	}
	ids := make([]int, 0, len(args))
	seen := make(map[int]struct{}, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid todo id %q", a)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
