package store

import (
	"fmt"
	"reflect"
)

// CheckKey validates key against a collection's partitioning.
func CheckKey(key Key, partitioned bool) error {
	if key.ID == "" {
		return ErrMissingID
	}
	if partitioned && key.PartitionKey == "" {
		return ErrPartitionKeyRequired
	}
	return nil
}

// ResetSlice sets *out to an empty, non-nil slice. out must be a pointer to a slice.
func ResetSlice(out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("docbase: out must be a non-nil pointer to a slice, got %T", out)
	}
	v.Elem().Set(reflect.MakeSlice(v.Elem().Type(), 0, 0))
	return nil
}

// CheckPointer verifies out is a non-nil pointer.
func CheckPointer(out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("docbase: out must be a non-nil pointer, got %T", out)
	}
	return nil
}
