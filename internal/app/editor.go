package app

import (
	"context"
	"fmt"

	"github.com/dshills/packhost/internal/host"
	"github.com/dshills/packhost/internal/packages/lua"
)

// EditorModule is the global table through which main modules reach the
// host.
const EditorModule = "editor"

// editorModule returns the functions of the editor table:
//
//	editor.dispatch(command, scope...)  dispatch a command
//	editor.triggerHook(name)            trigger an activation hook
//	editor.open(uri)                    open a URI in the workspace
//	editor.getConfig(keyPath)           read a config value
//	editor.setConfig(keyPath, value)    write a config value
//	editor.notify(message, detail)      show an error notification
func editorModule(a *App) map[string]lua.Func {
	return map[string]lua.Func{
		"dispatch": func(ctx context.Context, args []any) (any, error) {
			command, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			scopes := make([]string, 0, len(args)-1)
			for i := 1; i < len(args); i++ {
				scope, err := lua.ArgString(args, i)
				if err != nil {
					return nil, err
				}
				scopes = append(scopes, scope)
			}
			return nil, a.manager.DispatchCommand(ctx, command, scopes...)
		},
		"triggerHook": func(ctx context.Context, args []any) (any, error) {
			hook, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			return nil, a.manager.TriggerActivationHook(ctx, hook)
		},
		"open": func(ctx context.Context, args []any) (any, error) {
			uri, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			return nil, a.manager.OpenURI(ctx, uri)
		},
		"getConfig": func(_ context.Context, args []any) (any, error) {
			keyPath, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			return a.config.Get(keyPath), nil
		},
		"setConfig": func(_ context.Context, args []any) (any, error) {
			keyPath, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			if len(args) < 2 {
				return nil, fmt.Errorf("setConfig %s: missing value", keyPath)
			}
			return nil, a.config.Set(keyPath, args[1])
		},
		"notify": func(_ context.Context, args []any) (any, error) {
			message, err := lua.ArgString(args, 0)
			if err != nil {
				return nil, err
			}
			detail, _ := lua.ArgString(args, 1)
			a.registries.Notifications.AddError(message, host.ErrorDetail{Detail: detail, Dismissable: true})
			return nil, nil
		},
	}
}
