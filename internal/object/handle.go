package object

import "arbor/internal/ast"

// NativeHandle exposes a host value to scripts through its prototype.
type NativeHandle struct {
	ObjectHeader
	Value any
}

func NewNativeHandle(prototype Object, v any) *NativeHandle {
	return &NativeHandle{ObjectHeader: ObjectHeader{Prototype: prototype}, Value: v}
}

func (*NativeHandle) Type() Type { return NATIVE_HANDLE_OBJ }

// UnmanagedHandle carries a host value scripts can pass around but never
// compare by content.
type UnmanagedHandle struct {
	ObjectHeader
	Value any
}

func NewUnmanagedHandle(prototype Object, v any) *UnmanagedHandle {
	return &UnmanagedHandle{ObjectHeader: ObjectHeader{Prototype: prototype}, Value: v}
}

func (*UnmanagedHandle) Type() Type { return UNMANAGED_HANDLE_OBJ }

// Expression is an unevaluated tree handed to a macro.
type Expression struct {
	ObjectHeader
	Node ast.Node
}

func NewExpression(prototype Object, node ast.Node) *Expression {
	return &Expression{ObjectHeader: ObjectHeader{Prototype: prototype}, Node: node}
}

func (*Expression) Type() Type { return EXPRESSION_OBJ }
