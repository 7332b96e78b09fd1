package grt

// Walk visits v and every object it owns, depth first, calling fn for each
// object. Weak references are not followed. Walking stops when fn returns
// false; Walk reports whether it ran to completion.
func Walk(v Value, fn func(*Object) bool) bool {
	switch x := v.(type) {
	case *Object:
		if x == nil {
			return true
		}
		if !fn(x) {
			return false
		}
		for _, m := range x.meta.members {
			if !walkStored(x.values[m.Name], fn) {
				return false
			}
		}
	case *List:
		if x == nil {
			return true
		}
		for _, item := range x.items {
			if !walkStored(item, fn) {
				return false
			}
		}
	case *Dict:
		if x == nil {
			return true
		}
		for _, k := range x.keys {
			if !walkStored(x.values[k], fn) {
				return false
			}
		}
	}
	return true
}

func walkStored(v Value, fn func(*Object) bool) bool {
	if _, weak := v.(weakRef); weak {
		return true
	}
	return Walk(v, fn)
}

// CountObjects returns the number of objects in the subtree owned by v
func CountObjects(v Value) int {
	n := 0
	Walk(v, func(*Object) bool {
		n++
		return true
	})
	return n
}
