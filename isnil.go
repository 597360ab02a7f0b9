package tchannel2

import "reflect"

// isNil uses reflect to return true iff face
// contains a nil pointer, map, array, slice, or channel.
func isNil(face interface{}) bool {
	if face == nil {
		return true
	}
	switch reflect.TypeOf(face).Kind() {
	case reflect.Ptr, reflect.Array, reflect.Map, reflect.Slice, reflect.Chan:
		return reflect.ValueOf(face).IsNil()
	}
	return false
}
