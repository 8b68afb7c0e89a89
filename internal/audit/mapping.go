package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for a request. The resource is the first path
// segment after an optional /api prefix and the action is the last segment in snake case,
// e.g. POST /api/auth/complete-registration -> complete_registration on auth.
// Reads are prefixed with "get_".
func ParseRoute(method, path string) ActionResource {
	path = strings.Trim(path, "/")
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segs := strings.Split(path, "/")
	if len(segs) > 0 && segs[0] == "api" {
		segs = segs[1:]
	}
	if len(segs) == 0 || segs[0] == "" {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	resource := segs[0]
	action := resource
	if len(segs) > 1 {
		action = segs[len(segs)-1]
	}
	action = strings.ReplaceAll(strings.ToLower(action), "-", "_")
	if strings.EqualFold(method, "GET") {
		action = "get_" + action
	}
	return ActionResource{Action: action, Resource: resource}
}
