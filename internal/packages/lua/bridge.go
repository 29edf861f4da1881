package lua

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// Func is a host function callable from Lua.
type Func func(ctx context.Context, args []any) (any, error)

// Bridge converts values between Go and Lua.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to a Go value. Integral numbers become
// int64, tables become []any when they are sequences and map[string]any
// otherwise. Functions convert to nil.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return b.tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, b.ToLuaValue(item))
		}
		return t
	case lua.LValue:
		return val
	default:
		return b.reflectToLua(v)
	}
}

// reflectToLua handles slices, maps and structs not covered above.
func (b *Bridge) reflectToLua(v any) lua.LValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
		return b.ToLuaValue(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t

	case reflect.Map:
		t := b.L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.ToLuaValue(iter.Key().Interface()), b.ToLuaValue(iter.Value().Interface()))
		}
		return t

	case reflect.Struct:
		return b.structToTable(rv)

	case reflect.String:
		return lua.LString(rv.String())

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())

	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

// structToTable converts exported struct fields, named by json tag when set.
func (b *Bridge) structToTable(rv reflect.Value) *lua.LTable {
	t := b.L.NewTable()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
			for j := 0; j < len(tag); j++ {
				if tag[j] == ',' {
					tag = tag[:j]
					break
				}
			}
			if tag != "" {
				name = tag
			}
		}
		t.RawSetString(name, b.ToLuaValue(rv.Field(i).Interface()))
	}
	return t
}

// WrapFunc adapts fn for use from Lua. Errors are raised as Lua errors.
func (b *Bridge) WrapFunc(fn Func) lua.LGFunction {
	return func(L *lua.LState) int {
		n := L.GetTop()
		args := make([]any, n)
		for i := 1; i <= n; i++ {
			args[i-1] = b.ToGoValue(L.Get(i))
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := fn(ctx, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}

// ArgString returns args[i] as a string.
func ArgString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i+1, args[i])
	}
	return s, nil
}
