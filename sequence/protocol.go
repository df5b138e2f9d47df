package sequence

import (
	"fmt"
	"reflect"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// Method names of the sequence protocol.
const (
	LenMethod       = "Len"
	AtMethod        = "At"
	FromSliceMethod = "FromSlice"
)

var intType = reflect.TypeOf(0)

type protocolKind struct {
	t         reflect.Type
	elem      reflect.Type
	length    reflect.Method
	at        reflect.Method
	fromSlice reflect.Method
}

// protocolKindOf reports the protocol kind of t, or nil when t does not
// implement Len, At and FromSlice with matching element types.
func protocolKindOf(t reflect.Type) Kind {
	length, ok := t.MethodByName(LenMethod)
	if !ok || length.Type.NumIn() != 1 || length.Type.NumOut() != 1 || length.Type.Out(0) != intType {
		return nil
	}
	at, ok := t.MethodByName(AtMethod)
	if !ok || at.Type.NumIn() != 2 || at.Type.In(1) != intType || at.Type.NumOut() != 1 {
		return nil
	}
	elem := at.Type.Out(0)
	fromSlice, ok := t.MethodByName(FromSliceMethod)
	if !ok || fromSlice.Type.NumIn() != 2 || fromSlice.Type.NumOut() != 1 {
		return nil
	}
	in := fromSlice.Type.In(1)
	if in.Kind() != reflect.Slice || in.Elem() != elem || fromSlice.Type.Out(0) != t {
		return nil
	}
	return &protocolKind{t: t, elem: elem, length: length, at: at, fromSlice: fromSlice}
}

func (k *protocolKind) Elem() reflect.Type { return k.elem }

func (k *protocolKind) Len(seq reflect.Value) int {
	return int(k.length.Func.Call([]reflect.Value{seq})[0].Int())
}

func (k *protocolKind) At(seq reflect.Value, i int) reflect.Value {
	return k.at.Func.Call([]reflect.Value{seq, reflect.ValueOf(i)})[0]
}

func (k *protocolKind) Build(seq reflect.Value, elems []reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opticserr.ReconstructionFailed(k.t.String(), fmt.Errorf("%s panicked: %v", FromSliceMethod, r))
		}
	}()
	in := reflect.MakeSlice(k.fromSlice.Type.In(1), len(elems), len(elems))
	for i, e := range elems {
		in.Index(i).Set(e)
	}
	return k.fromSlice.Func.Call([]reflect.Value{seq, in})[0], nil
}
